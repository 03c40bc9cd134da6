// Package httpstore implements the durable tier against a remote sync
// service over HTTP.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
	"github.com/queryclip/queryclip-server/internal/ratelimit"
)

const (
	// Rate limit: outbound saves are already debounced, this is a backstop.
	defaultRPS   = 2.0
	defaultBurst = 4

	defaultTimeout = 30 * time.Second
)

// Client talks to a remote state sync service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// New creates a client for the sync service at baseURL.
func New(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: ratelimit.New(defaultRPS, defaultBurst),
		logger:  logger,
	}
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.limiter.Stop()
	return nil
}

// SaveState writes the snapshot to the sync service.
func (c *Client) SaveState(ctx context.Context, snap *domain.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = c.doRequest(ctx, http.MethodPut, "/state", body)
	return err
}

// LoadState fetches the saved snapshot from the sync service.
func (c *Client) LoadState(ctx context.Context) (*domain.Snapshot, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/state", nil)
	if err != nil {
		return nil, err
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// ClearState removes the saved snapshot from the sync service.
func (c *Client) ClearState(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/state", nil)
	return err
}

// doRequest executes an HTTP request with rate limiting and classifies
// failures. Network errors, timeouts, and 5xx responses are transient and
// retried by the persistence layer; other failures are permanent.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx, c.baseURL); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "QueryClip/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.logger != nil {
		c.logger.Debug("sync service request", "method", method, "path", path)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, qerrors.Transient("sync service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, qerrors.Transient("read sync service response").WithCause(err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return respBody, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, qerrors.NotFound("no saved state")
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		// Permanent: retrying the same payload cannot succeed, the
		// persistence layer must degrade it instead.
		return nil, qerrors.PayloadTooLarge("sync service rejected snapshot size")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, qerrors.Transientf("sync service returned %d", resp.StatusCode)
	default:
		return nil, qerrors.Internalf("sync service returned %d", resp.StatusCode)
	}
}
