package telegram

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 2 * time.Second
	// Long polling holds the request open for the poll timeout, so the
	// response header and client timeouts must exceed it.
	pollHeadroom = 15 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// pollTimeout is the long poll timeout the client has to accommodate.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: pollTimeout + pollHeadroom,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: pollTimeout + 2*pollHeadroom,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: defaultRetryAttempts,
			backoff:    defaultRetryBackoff,
		},
	}
}

// retryTransport retries requests that failed before a response arrived
// with a transient network error. Responses are never retried.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			} else if req.Body != nil && req.Body != http.NoBody {
				// Body already consumed and cannot be replayed.
				return nil, lastErr
			}
		}

		resp, err := base.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := t.backoff * time.Duration(attempt)
		logger.LogEvent(req.Context(), logger.TG, slog.LevelWarn, "tg.http.retry",
			slog.Int("attempt", attempt),
			slog.String("err_kind", netutil.Classify(err)),
			slog.Duration("backoff", delay),
		)
		if delay <= 0 {
			continue
		}
		if err := sleepCtx(req.Context(), delay); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
