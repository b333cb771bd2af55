// Package statsapi implements the client for the authoritative user stats
// service. The dashboard prefers this service's numbers; when it is down or
// returns something invalid, the caller falls back to recomputing the same
// snapshot locally from the activity history.
package statsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/training-hub/training-hub/internal/domain/stats"
	"github.com/training-hub/training-hub/pkg/circuitbreaker"
	"github.com/training-hub/training-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the stats service client.
type ClientConfig struct {
	// BaseURL is the stats service base URL.
	BaseURL string

	// APIKey authenticates requests (Bearer token).
	APIKey string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrSnapshotNotFound is returned when the service has no record of
	// the learner.
	ErrSnapshotNotFound = errors.New("statsapi: snapshot not found")

	// ErrServiceUnavailable is returned when the service cannot be
	// reached or keeps failing.
	ErrServiceUnavailable = errors.New("statsapi: service unavailable")
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client fetches authoritative stats snapshots. Requests run behind a
// circuit breaker with bounded retries, so a dead stats service costs the
// read path one fast-failing call instead of a pile of timeouts.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	mapper     *Mapper
}

// NewClient creates a new stats service client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     config.Logger,
		breaker: circuitbreaker.New("statsapi",
			circuitbreaker.WithFailureThreshold(5),
			circuitbreaker.WithTimeout(30*time.Second),
			// An unknown learner is an answer, not an outage.
			circuitbreaker.WithIsFailure(func(err error) bool {
				return err != nil && !errors.Is(err, ErrSnapshotNotFound)
			}),
		),
		retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(50*time.Millisecond),
			retry.WithMaxDelay(time.Second),
		),
		mapper: NewMapper(),
	}
}

// FetchSnapshot returns the service's stats snapshot for a learner.
// Implements the stats provider the GetUserStats query reads through.
func (c *Client) FetchSnapshot(ctx context.Context, userID string) (*stats.Snapshot, error) {
	if userID == "" {
		return nil, errors.New("statsapi: user_id is required")
	}

	var dto SnapshotDTO
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.getJSON(ctx, "/api/v1/users/"+url.PathEscape(userID)+"/stats", &dto)
		})
	})
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			return nil, err
		}
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: circuit open", ErrServiceUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	return c.mapper.SnapshotFromDTO(&dto), nil
}

// Health probes the service's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, "/healthz", &struct{}{})
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP
// ══════════════════════════════════════════════════════════════════════════════

// getJSON performs one GET and decodes the body. 4xx responses are
// permanent; 5xx and transport errors are retryable.
func (c *Client) getJSON(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.Unmarshal(body, result); err != nil {
			return retry.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil

	case resp.StatusCode == http.StatusNotFound:
		return retry.Permanent(ErrSnapshotNotFound)

	case resp.StatusCode >= 500:
		c.logger.Warn("stats service error",
			"status", resp.StatusCode,
			"path", path,
		)
		return retry.Retryable(fmt.Errorf("server error %d", resp.StatusCode))

	default:
		var apiErr ErrorDTO
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return retry.Permanent(fmt.Errorf("api error %d: %s", resp.StatusCode, apiErr.Message))
		}
		return retry.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}
