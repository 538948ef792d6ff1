// Package steam implements the trade transfer provider against a local
// trade-agent HTTP API. The agent holds the Steam session and performs the
// actual peer-to-peer offer; this process only asks it to send or cancel.
package steam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/easton36/clashgg-sniper/internal/domain"
)

// Client talks to the trade agent.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given agent base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type sendOfferRequest struct {
	Tradelink string `json:"tradelink"`
	AppID     string `json:"appid"`
	ContextID string `json:"contextid"`
	AssetID   string `json:"assetid"`
	Message   string `json:"message,omitempty"`
}

type sendOfferResponse struct {
	OfferID string `json:"offerId"`
	Error   string `json:"error,omitempty"`
}

// SendTransfer asks the agent to send a trade offer for a single asset to the
// buyer's tradelink. It returns the offer ID used for later cancellation.
func (c *Client) SendTransfer(ctx context.Context, tradelink string, asset domain.AssetRef, message string) (string, error) {
	req := sendOfferRequest{
		Tradelink: tradelink,
		AppID:     asset.AppID,
		ContextID: asset.ContextID,
		AssetID:   asset.AssetID,
		Message:   message,
	}

	var resp sendOfferResponse
	if err := c.post(ctx, "/offers", req, &resp); err != nil {
		return "", err
	}
	if resp.OfferID == "" {
		return "", fmt.Errorf("steam: send offer: %s", orUnknown(resp.Error))
	}
	return resp.OfferID, nil
}

// CancelTransfer asks the agent to cancel a previously sent offer.
func (c *Client) CancelTransfer(ctx context.Context, offerID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/offers/"+offerID, nil)
	if err != nil {
		return fmt.Errorf("steam: create cancel request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("steam: cancel offer %s: %w", offerID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("steam: cancel offer %s: status %d: %s", offerID, resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("steam: marshal %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("steam: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("steam: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("steam: read %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("steam: %s: status %d: %s", path, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("steam: decode %s: %w", path, err)
		}
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown error"
	}
	return s
}

// Compile-time interface check.
var _ domain.TransferSender = (*Client)(nil)
