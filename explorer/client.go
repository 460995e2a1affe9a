// Copyright (c) 2025 The btcsigner developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package explorer implements a minimal client for an esplora-style block
// explorer REST API. It covers exactly the two boundaries the signing
// pipeline needs: discovering spendable outputs for an address and
// broadcasting a finalized transaction.
package explorer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/globalstake/btcsigner/coinset"
)

const (
	// defaultRequestTimeout is the HTTP timeout applied when the config
	// does not specify one.
	defaultRequestTimeout = 30 * time.Second
)

// Config holds the configuration for the explorer client.
type Config struct {
	// BaseURL is the base URL of the explorer API, e.g.
	// https://blockstream.info/testnet/api.
	BaseURL string

	// RequestTimeout is the timeout for individual HTTP requests.
	RequestTimeout time.Duration

	// MaxRetries is the maximum number of retries for failed requests.
	// Only transport errors are retried; HTTP error responses are
	// surfaced immediately.
	MaxRetries int
}

// addressUtxo mirrors the explorer's per-address UTXO response entry.
type addressUtxo struct {
	TxID  string `json:"txid"`
	Vout  uint32 `json:"vout"`
	Value int64  `json:"value"`
}

// Client is an HTTP client for the explorer REST API.
type Client struct {
	cfg *Config

	httpClient *http.Client
}

// NewClient creates a new explorer client with the given configuration.
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

// doRequest performs an HTTP request with bounded retries on transport
// errors.
func (c *Client) doRequest(ctx context.Context, method, path string,
	body []byte) (*http.Response, error) {

	url := c.cfg.BaseURL + path

	var lastErr error
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(
			ctx, method, url, reader,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w",
				err)
		}

		if body != nil {
			req.Header.Set("Content-Type", "text/plain")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if i < c.cfg.MaxRetries {
				time.Sleep(time.Duration(i+1) *
					100 * time.Millisecond)
			}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w",
		c.cfg.MaxRetries+1, lastErr)
}

// doGet performs a GET request and returns the response body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s",
			resp.StatusCode, string(body))
	}

	return body, nil
}

// GetAddressUTXOs fetches the unspent outputs for an address. A zero-length
// result is a valid response, not an error; whether an empty set is
// acceptable is the materializer's decision.
func (c *Client) GetAddressUTXOs(ctx context.Context,
	address string) ([]coinset.UTXO, error) {

	body, err := c.doGet(ctx, "/address/"+address+"/utxo")
	if err != nil {
		return nil, err
	}

	var entries []addressUtxo
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	utxos := make([]coinset.UTXO, 0, len(entries))
	for _, entry := range entries {
		txid, err := chainhash.NewHashFromStr(entry.TxID)
		if err != nil {
			return nil, fmt.Errorf("invalid txid %q in response: "+
				"%w", entry.TxID, err)
		}

		utxos = append(utxos, coinset.UTXO{
			TxID:  *txid,
			Vout:  entry.Vout,
			Value: btcutil.Amount(entry.Value),
		})
	}

	log.Debugf("Fetched %d utxos for address %s", len(utxos), address)

	return utxos, nil
}

// GetRawTransaction fetches and deserializes a previous transaction by txid.
// It is used to populate non-witness prevout metadata when a full previous
// transaction is required.
func (c *Client) GetRawTransaction(ctx context.Context,
	txid string) (*wire.MsgTx, error) {

	body, err := c.doGet(ctx, "/tx/"+txid+"/hex")
	if err != nil {
		return nil, err
	}

	txBytes, err := hex.DecodeString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode tx hex: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
		return nil, fmt.Errorf("failed to deserialize tx: %w", err)
	}

	return tx, nil
}

// BroadcastTransaction submits a hex-encoded finalized transaction to the
// network and returns the accepted txid. A rejection's error body is
// surfaced to the caller unmodified.
func (c *Client) BroadcastTransaction(ctx context.Context,
	txHex string) (string, error) {

	resp, err := c.doRequest(ctx, http.MethodPost, "/tx", []byte(txHex))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("broadcast failed with status %d: %s",
			resp.StatusCode, string(body))
	}

	txid := string(bytes.TrimSpace(body))
	log.Infof("Broadcast accepted: txid=%s", txid)

	return txid, nil
}
