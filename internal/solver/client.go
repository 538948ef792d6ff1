// Package solver implements the anti-bot challenge solver client. The actual
// browser automation runs in a sidecar service; this client hands it the
// refresh credential and gets back the session cookie the marketplace expects.
package solver

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

// Client talks to the solver sidecar.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given sidecar base URL. timeout bounds a
// single solve, which involves a full headless-browser page load.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type solveRequest struct {
	URL     string            `json:"url"`
	Cookies map[string]string `json:"cookies,omitempty"`
}

type solveResponse struct {
	Cookies map[string]string `json:"cookies"`
	Error   string            `json:"error,omitempty"`
}

// Solve loads the marketplace through the sidecar browser with the refresh
// token attached and returns the clearance cookie it was issued.
func (c *Client) Solve(ctx context.Context, refreshToken string) (string, error) {
	reqBody := solveRequest{
		URL:     "https://clash.gg",
		Cookies: map[string]string{"refresh_token": refreshToken},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("solver: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/solve", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("solver: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("solver: solve: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("solver: status %d: %s: %w", resp.StatusCode, string(respBody), domain.ErrSolverFailed)
	}

	var out solveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("solver: decode response: %w", err)
	}

	clearance := out.Cookies["cf_clearance"]
	if clearance == "" {
		return "", fmt.Errorf("solver: no clearance cookie in response: %w", domain.ErrSolverFailed)
	}
	return clearance, nil
}

// Compile-time interface check.
var _ domain.ChallengeSolver = (*Client)(nil)
