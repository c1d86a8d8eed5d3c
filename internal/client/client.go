// Package client calls the transactions API over HTTP, the way the web
// dashboard does. Input is validated locally before any request is made.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

var (
	ErrFetchFailed  = errors.New("failed to fetch transactions")
	ErrCreateFailed = errors.New("failed to create transaction")
	ErrDeleteFailed = errors.New("failed to delete transaction")
)

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the API rooted at baseURL. A nil httpClient gets a
// 10s timeout default.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// List fetches transactions, filtered by owner when userID is non-nil.
// A 404 answer means there is nothing to show and yields an empty slice.
func (c *Client) List(ctx context.Context, userID *int64) ([]core.Transaction, error) {
	url := c.baseURL + "/api/v1/transactions"
	if userID != nil {
		url += "?userId=" + strconv.FormatInt(*userID, 10)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []core.Transaction{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, statusDetail(resp))
	}

	txs := make([]core.Transaction, 0)
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFetchFailed, err)
	}
	return txs, nil
}

// Create validates in and posts it. Validation errors are returned as
// *core.ValidationError without contacting the server.
func (c *Client) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: encode: %v", ErrCreateFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return core.Transaction{}, fmt.Errorf("%w: %s", ErrCreateFailed, statusDetail(resp))
	}

	var tx core.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return core.Transaction{}, fmt.Errorf("%w: decode: %v", ErrCreateFailed, err)
	}
	return tx, nil
}

// Delete removes a transaction. A 404 answer maps to core.ErrNotFound.
func (c *Client) Delete(ctx context.Context, id int64) error {
	url := c.baseURL + "/api/v1/transactions/" + strconv.FormatInt(id, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return core.ErrNotFound
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrDeleteFailed, statusDetail(resp))
	}
}

func statusDetail(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var payload struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(b, &payload) == nil {
		if payload.Message != "" {
			return fmt.Sprintf("status %d: %s", resp.StatusCode, payload.Message)
		}
		if payload.Detail != "" {
			return fmt.Sprintf("status %d: %s", resp.StatusCode, payload.Detail)
		}
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
