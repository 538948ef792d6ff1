// Package clash implements the marketplace control-plane client, the event
// stream connection, and the session manager that keeps both authenticated.
package clash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// Client is the REST client for the marketplace control plane. All calls carry
// the current access token; callers receive domain.ErrUnauthorized when the
// marketplace rejects it, which the session manager turns into a credential
// refresh.
type Client struct {
	baseURL string
	http    *http.Client

	mu          sync.RWMutex
	accessToken string
	cfClearance string
}

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetCredentials replaces the access token and anti-bot cookie used on
// subsequent requests.
func (c *Client) SetCredentials(accessToken, cfClearance string) {
	c.mu.Lock()
	c.accessToken = accessToken
	c.cfClearance = cfClearance
	c.mu.Unlock()
}

// AccessToken returns the current access token.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// apiError is the marketplace error envelope.
type apiError struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("clash: marshal %s %s: %w", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("clash: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)

	c.mu.RLock()
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if c.cfClearance != "" {
		req.Header.Set("Cookie", "cf_clearance="+c.cfClearance)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("clash: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("clash: read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		switch {
		case resp.StatusCode == http.StatusUnauthorized || apiErr.Message == "Unauthorized":
			return fmt.Errorf("clash: %s %s: %w", method, path, domain.ErrUnauthorized)
		case apiErr.Message == "resource_unavailable":
			return fmt.Errorf("clash: %s %s: %w", method, path, domain.ErrListingUnavailable)
		case apiErr.Message != "":
			return fmt.Errorf("clash: %s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Message)
		default:
			return fmt.Errorf("clash: %s %s: status %d", method, path, resp.StatusCode)
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("clash: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// Authenticate exchanges the long-lived refresh token (plus the anti-bot
// clearance cookie, when required) for a fresh access token and installs it on
// the client.
func (c *Client) Authenticate(ctx context.Context, refreshToken, cfClearance string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/access-token", nil)
	if err != nil {
		return "", fmt.Errorf("clash: create auth request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	cookie := "refresh_token=" + refreshToken
	if cfClearance != "" {
		cookie = "cf_clearance=" + cfClearance + "; " + cookie
	}
	req.Header.Set("Cookie", cookie)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("clash: auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("clash: auth: %w", domain.ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("clash: auth: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("clash: decode auth response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("clash: auth: empty access token")
	}

	c.SetCredentials(body.AccessToken, cfClearance)
	return body.AccessToken, nil
}

// GetProfile fetches the authenticated account profile.
func (c *Client) GetProfile(ctx context.Context) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.do(ctx, http.MethodGet, "/user/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// BuyListing purchases the listing. A benign purchase race surfaces as
// domain.ErrListingUnavailable.
func (c *Client) BuyListing(ctx context.Context, id int64) error {
	var body struct {
		Success    bool   `json:"success"`
		Message    string `json:"message"`
		NewBalance int64  `json:"newBalance"`
	}
	path := fmt.Sprintf("/steam-p2p/listings/%d/buy", id)
	if err := c.do(ctx, http.MethodPatch, path, nil, &body); err != nil {
		return err
	}
	if !body.Success {
		if body.Message == "resource_unavailable" {
			return fmt.Errorf("clash: buy %d: %w", id, domain.ErrListingUnavailable)
		}
		return fmt.Errorf("clash: buy %d: %s", id, body.Message)
	}
	return nil
}

// AnswerListing accepts a purchase request on one of our listings.
func (c *Client) AnswerListing(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/steam-p2p/listings/%d/answer", id)
	return c.do(ctx, http.MethodPatch, path, nil, nil)
}

// DeleteListing removes one of our listings, releasing its slot.
func (c *Client) DeleteListing(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/steam-p2p/listings/%d", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// CreateListings lists items for sale in one batch call.
func (c *Client) CreateListings(ctx context.Context, items []domain.NewListing) ([]domain.Listing, error) {
	req := struct {
		Items []domain.NewListing `json:"items"`
	}{Items: items}
	var listings []domain.Listing
	if err := c.do(ctx, http.MethodPost, "/steam-p2p/listings", req, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// GetActiveListings returns our currently open listings.
func (c *Client) GetActiveListings(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing
	if err := c.do(ctx, http.MethodGet, "/steam-p2p/listings/my-active", nil, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// GetInventory fetches our Steam inventory as the marketplace sees it.
func (c *Client) GetInventory(ctx context.Context) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	if err := c.do(ctx, http.MethodGet, "/steam/inventory", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// P2POnline tells the marketplace we are online and able to fulfill trades.
func (c *Client) P2POnline(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/steam-p2p/online", nil, nil)
}
