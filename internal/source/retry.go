package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	crashlog "github.com/quantkb/finconcept/internal/logger"
	"github.com/quantkb/finconcept/types"
)

const (
	defaultMaxRetries = 2
	baseBackoff       = 400 * time.Millisecond

	userAgent = "finconcept/1.0 (+https://github.com/quantkb/finconcept)"
)

// retryable reports whether a status merits another attempt. Client errors
// other than 429 never do: the request itself is wrong and retrying it
// only burns the rate budget.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// backoffDelay returns the wait before retry attempt n (0-based),
// exponential with up to 25% jitter.
func backoffDelay(attempt int) time.Duration {
	d := baseBackoff << attempt
	return d + rand.N(d/4)
}

// httpAPI is the shared HTTP layer under every connector: one client, one
// rate limiter, bounded retries, JSON decoding.
type httpAPI struct {
	client  *http.Client
	limiter *limiter
	retries int
	source  string
	logger  *slog.Logger
}

func newHTTPAPI(source string, cfg types.EndpointConfig, logger *slog.Logger) *httpAPI {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	interval := defaultMinInterval
	if cfg.MinIntervalMs > 0 {
		interval = time.Duration(cfg.MinIntervalMs) * time.Millisecond
	}

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	} else if cfg.MaxRetries == 0 {
		retries = defaultMaxRetries
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &httpAPI{
		client:  &http.Client{Timeout: timeout},
		limiter: newLimiter(interval),
		retries: retries,
		source:  source,
		logger:  logger,
	}
}

// getJSON performs a rate-limited GET and decodes the response into out,
// retrying transport errors, 429, and 5xx with backoff.
func (h *httpAPI) getJSON(ctx context.Context, op, url string, out any) error {
	crashlog.SetLastQuery(h.source + " " + op + " " + url)

	var lastErr error
	for attempt := 0; attempt <= h.retries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt - 1)
			h.logger.Debug("retrying request", "source", h.source, "op", op, "attempt", attempt, "wait", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err := h.limiter.wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return types.NewSourceError(h.source, op, 0, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = types.NewSourceError(h.source, op, 0, err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			err := json.NewDecoder(resp.Body).Decode(out)
			_ = resp.Body.Close()
			if err != nil {
				return types.NewSourceError(h.source, op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
			}
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		lastErr = types.NewSourceError(h.source, op, resp.StatusCode,
			fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(body))))
		if !retryable(resp.StatusCode) {
			return lastErr
		}
	}
	return lastErr
}
