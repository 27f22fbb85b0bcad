// Package oracle provides the HTTP client for the external
// verification provider. A transport or non-2xx failure is returned as
// an error, distinct from a negative verdict.
package oracle

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"questhub/internal/model"

	"github.com/goccy/go-json"
)

type Config struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type verifyRequest struct {
	UserAddress string `json:"user_address"`
	StepID      string `json:"step_id"`
	Action      string `json:"action"`
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

func (c *Client) Verify(ctx context.Context, userAddress string, step *model.Step) (bool, error) {
	body, err := json.Marshal(verifyRequest{
		UserAddress: userAddress,
		StepID:      step.StepID.String(),
		Action:      step.Action,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode oracle response: %w", err)
	}

	return result.Verified, nil
}
