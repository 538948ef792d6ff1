package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/easton36/clashgg-sniper/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each item is
// stored at key "item:{name}" with one field per price source (USD cents)
// plus a "ts" field holding the refresh time as Unix seconds. The full sheet
// is rewritten by the periodic feed refresh, so entries carry a TTL as a
// staleness backstop.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. ttl of zero
// keeps entries forever.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func itemKey(name string) string {
	return "item:" + name
}

// SetPrices stores the per-source prices for an item.
func (pc *PriceCache) SetPrices(ctx context.Context, name string, prices domain.SourcePrices, ts time.Time) error {
	key := itemKey(name)
	fields := make(map[string]interface{}, len(prices)+1)
	for source, cents := range prices {
		fields[source] = strconv.FormatInt(cents, 10)
	}
	fields["ts"] = strconv.FormatInt(ts.Unix(), 10)

	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set prices %q: %w", name, err)
	}
	return nil
}

// GetPrices retrieves the cached prices for an item. It returns
// domain.ErrNotFound when the item has never been priced.
func (pc *PriceCache) GetPrices(ctx context.Context, name string) (domain.SourcePrices, error) {
	vals, err := pc.rdb.HGetAll(ctx, itemKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get prices %q: %w", name, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	prices := make(domain.SourcePrices, len(vals))
	for field, v := range vals {
		if field == "ts" {
			continue
		}
		cents, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		prices[field] = cents
	}
	if len(prices) == 0 {
		return nil, domain.ErrNotFound
	}
	return prices, nil
}

// SetAll rewrites the price sheet in batches of one pipeline per chunk. Used
// by the periodic feed refresh.
func (pc *PriceCache) SetAll(ctx context.Context, sheet map[string]domain.SourcePrices, ts time.Time) (int, error) {
	const chunkSize = 500

	names := make([]string, 0, len(sheet))
	for name := range sheet {
		names = append(names, name)
	}

	written := 0
	for start := 0; start < len(names); start += chunkSize {
		end := start + chunkSize
		if end > len(names) {
			end = len(names)
		}
		pipe := pc.rdb.Pipeline()
		for _, name := range names[start:end] {
			prices := sheet[name]
			fields := make(map[string]interface{}, len(prices)+1)
			for source, cents := range prices {
				fields[source] = strconv.FormatInt(cents, 10)
			}
			fields["ts"] = strconv.FormatInt(ts.Unix(), 10)
			pipe.HSet(ctx, itemKey(name), fields)
			if pc.ttl > 0 {
				pipe.Expire(ctx, itemKey(name), pc.ttl)
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return written, fmt.Errorf("redis: set price sheet: %w", err)
		}
		written += end - start
	}
	return written, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
