// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package builder implements the client side of the external
// transaction-builder service. The builder owns input/output selection,
// change calculation and fee estimation; this client only submits a transfer
// request and receives the unsigned PSBT the builder produced.
package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/globalstake/btcsigner/coinset"
)

// defaultRequestTimeout is the HTTP timeout applied when the config does not
// specify one.
const defaultRequestTimeout = 30 * time.Second

// Config holds the configuration for the builder client.
type Config struct {
	// BaseURL is the base URL of the builder service.
	BaseURL string

	// RequestTimeout is the timeout for individual HTTP requests.
	RequestTimeout time.Duration
}

// buildResponse mirrors the builder's response to a transfer request.
type buildResponse struct {
	Psbt string `json:"psbt"`
}

// Client is an HTTP client for the builder service.
type Client struct {
	cfg *Config

	httpClient *http.Client
}

// NewClient creates a new builder client with the given configuration.
func NewClient(cfg *Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BuildPsbt submits a transfer request to the builder service and returns the
// unsigned PSBT in base64 transport encoding. A rejection's error body is
// surfaced to the caller unmodified.
func (c *Client) BuildPsbt(ctx context.Context,
	request *coinset.TransferRequest) (string, error) {

	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer request: %w",
			err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.cfg.BaseURL+"/transactions",
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("builder returned status %d: %s",
			resp.StatusCode, string(body))
	}

	var built buildResponse
	if err := json.Unmarshal(body, &built); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if built.Psbt == "" {
		return "", fmt.Errorf("builder response contains no psbt")
	}

	log.Debugf("Builder returned unsigned psbt (%d inputs requested)",
		len(request.Inputs))

	return built.Psbt, nil
}
