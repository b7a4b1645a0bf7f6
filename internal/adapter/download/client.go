// Package download fetches upstream archives and marker files over HTTP.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrStatus reports a non-200 upstream response.
var ErrStatus = errors.New("unexpected download status")

const (
	breakerFailures = 3
	breakerTimeout  = 5 * time.Minute
)

// Recorder counts downloads by kind and outcome.
type Recorder interface {
	Download(kind, outcome string)
}

// Client downloads files with a request timeout and one circuit breaker per
// upstream host. Failed downloads are not retried.
type Client struct {
	httpClient *http.Client
	metrics    Recorder
	logger     *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient creates a download client.
func NewClient(timeout time.Duration, metrics Recorder, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Fetch downloads rawURL into dest, creating parent directories. The body is
// written to a temporary file and renamed into place, so dest is never left
// half-written. kind labels the download in metrics and logs.
func (c *Client) Fetch(ctx context.Context, kind, rawURL, dest string) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("parse download url: %w", err)
	}

	start := time.Now()
	out, err := c.breaker(u.Host).Execute(func() (interface{}, error) {
		return c.fetch(ctx, rawURL, dest)
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		c.record(kind, outcome)
		return 0, fmt.Errorf("download %s %s: %w", kind, rawURL, err)
	}

	n := out.(int64)
	c.record(kind, "success")
	c.logger.Info("downloaded", "kind", kind, "url", rawURL, "bytes", n, "duration", time.Since(start))
	return n, nil
}

func (c *Client) fetch(ctx context.Context, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return 0, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create download file: %w", err)
	}
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("write download: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("rename download: %w", err)
	}
	return n, nil
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("download circuit breaker state changed", "host", name, "from", from.String(), "to", to.String())
		},
	})
	c.breakers[host] = cb
	return cb
}

func (c *Client) record(kind, outcome string) {
	if c.metrics != nil {
		c.metrics.Download(kind, outcome)
	}
}
