// Package payments hands released escrow amounts to the external
// settlement rail and returns its confirmation reference.
package payments

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

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

type payRequest struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

type payResponse struct {
	Confirmation string `json:"confirmation"`
}

func (c *Client) Pay(ctx context.Context, userAddress string, amount int64) (string, error) {
	body, err := json.Marshal(payRequest{
		Recipient: userAddress,
		Amount:    amount,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("payment rail returned status %d", resp.StatusCode)
	}

	var result payResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode payment response: %w", err)
	}
	return result.Confirmation, nil
}
