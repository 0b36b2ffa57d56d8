// Package gateway talks to the upstream platform REST API. The upstream fleet
// is heterogeneous: older nodes answer with {success,data,message} envelopes,
// newer ones with {code,data,message}. Both shapes are normalized here and
// never leak past this package.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/polystore/polystore-console/internal/shared"
)

// Client issues requests against the platform API.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Get performs a read and decodes the envelope payload into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, shared.ErrUnavailable)
}

// Post performs a create and decodes the envelope payload into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out, shared.ErrUpdateFailed)
}

// Put performs a full update.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out, shared.ErrUpdateFailed)
}

// Patch performs a partial update.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out, shared.ErrUpdateFailed)
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, shared.ErrUpdateFailed)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, failSentinel error) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("platform api unreachable", slog.String("method", method), slog.String("path", path), slog.Any("error", err))
		}
		return fmt.Errorf("gateway: %s %s: %w", method, path, failSentinel)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("gateway: %s %s: %w", method, path, shared.ErrNotFound)
	}
	if res.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("gateway: %s %s: status %d: %w", method, path, res.StatusCode, failSentinel)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("gateway: read response: %w", failSentinel)
	}

	data, err := decodeEnvelope(raw)
	if err != nil {
		return fmt.Errorf("gateway: %s %s: %s: %w", method, path, err.Error(), failSentinel)
	}
	if out == nil {
		return nil
	}
	if len(data) == 0 {
		return fmt.Errorf("gateway: %s %s: empty payload: %w", method, path, failSentinel)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("gateway: decode payload: %s: %w", err.Error(), failSentinel)
	}
	return nil
}
