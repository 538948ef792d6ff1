// Package pricempire implements the external pricing feed client used for
// fair-value checks and inventory valuation.
package pricempire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
)

// Client talks to the pricing feed REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Client for the given feed base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// FetchAllPrices downloads the full price sheet: item market-hash name to
// per-source USD prices. Doppler items come back with phase-specific sources
// ("buff163_phase2") next to the base ones, so fields are decoded generically
// rather than against a fixed set.
func (c *Client) FetchAllPrices(ctx context.Context) (map[string]domain.SourcePrices, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("source", "buff163,buff163_quick,buff163_avg7,buff163_avg30")

	var raw map[string]map[string]json.RawMessage
	if err := c.get(ctx, "/v2/getAllItems?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	out := make(map[string]domain.SourcePrices, len(raw))
	for name, fields := range raw {
		prices := domain.SourcePrices{}
		for source, v := range fields {
			var cents int64
			if err := json.Unmarshal(v, &cents); err != nil {
				continue // non-numeric metadata field
			}
			if cents > 0 {
				prices[source] = cents
			}
		}
		if len(prices) > 0 {
			out[name] = prices
		}
	}
	return out, nil
}

// InventoryValuation is one priced item from the feed's inventory endpoint.
type InventoryValuation struct {
	Name     string `json:"name"`
	BuffUSD  int64  `json:"buffUsd"`
	AssetID  string `json:"assetId"`
	Tradable bool   `json:"tradable"`
}

// FetchInventory returns the feed's USD valuation of the given Steam
// account's inventory.
func (c *Client) FetchInventory(ctx context.Context, steamID string) ([]InventoryValuation, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("currency", "USD")
	q.Set("sources", "buff")

	var body struct {
		Items []struct {
			Name    string `json:"name"`
			AssetID string `json:"assetId"`
			Prices  struct {
				Buff int64 `json:"buff"`
			} `json:"prices"`
			Tradable bool `json:"tradable"`
		} `json:"items"`
	}
	if err := c.get(ctx, "/v3/inventory/"+url.PathEscape(steamID)+"?"+q.Encode(), &body); err != nil {
		return nil, err
	}

	out := make([]InventoryValuation, 0, len(body.Items))
	for _, it := range body.Items {
		out = append(out, InventoryValuation{
			Name:     it.Name,
			BuffUSD:  it.Prices.Buff,
			AssetID:  it.AssetID,
			Tradable: it.Tradable,
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("pricempire: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pricempire: get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("pricempire: status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("pricempire: decode: %w", err)
	}
	return nil
}
