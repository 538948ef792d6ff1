package pricempire

import "strings"

// dopplerMarkers maps image-URL fragments to doppler phase identifiers. The
// marketplace encodes the phase only in the item render URL, never in the
// name, so this is the sole way to distinguish a Phase 2 from a Sapphire.
var dopplerMarkers = map[string]string{
	"phase1":      "phase1",
	"phase2":      "phase2",
	"phase3":      "phase3",
	"phase4":      "phase4",
	"sapphire":    "sapphire",
	"ruby":        "ruby",
	"blackpearl":  "blackpearl",
	"black-pearl": "blackpearl",
	"emerald":     "emerald",
}

// DopplerPhase extracts the doppler phase from an item image URL. It returns
// the empty string for non-doppler items.
func DopplerPhase(imageURL string) string {
	lower := strings.ToLower(imageURL)
	if !strings.Contains(lower, "doppler") {
		return ""
	}
	for marker, phase := range dopplerMarkers {
		if strings.Contains(lower, marker) {
			return phase
		}
	}
	return ""
}

// PhaseSource returns the feed source key for a fair-value lookup: the base
// source for regular items, or the phase-specific variant for dopplers.
func PhaseSource(base, phase string) string {
	if phase == "" {
		return base
	}
	return base + "_" + phase
}
