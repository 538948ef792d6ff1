package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Clash.RefreshToken)
	redact(&out.Pricempire.APIKey)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Notify.TelegramToken)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Sniper.IgnoreItems != nil {
		out.Sniper.IgnoreItems = make([]string, len(cfg.Sniper.IgnoreItems))
		copy(out.Sniper.IgnoreItems, cfg.Sniper.IgnoreItems)
	}
	if cfg.Sniper.IgnoreStrings != nil {
		out.Sniper.IgnoreStrings = make([]string, len(cfg.Sniper.IgnoreStrings))
		copy(out.Sniper.IgnoreStrings, cfg.Sniper.IgnoreStrings)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
