// Package attestation records public completion facts with the
// external attestation ledger. Recording is best-effort: the claim
// path logs failures and pays out regardless.
package attestation

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
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

type recordRequest struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

type recordResponse struct {
	AttestationID string `json:"attestation_id"`
}

func (c *Client) Record(ctx context.Context, userAddress string, questID uuid.UUID) (string, error) {
	body, err := json.Marshal(recordRequest{
		Subject:   userAddress,
		Predicate: "completed",
		Object:    questID.String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal attestation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/attestations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build attestation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("attestation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("attestation ledger returned status %d", resp.StatusCode)
	}

	var result recordResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode attestation response: %w", err)
	}
	return result.AttestationID, nil
}
