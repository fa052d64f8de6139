package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Placeholder is the authority every server-relative request is built
// against. It is swapped for the stored base URL at request time.
const Placeholder = "http://<npc_host>:7511"

const (
	HeaderRequestID = "X-Request-ID"
	DefaultAttempts = 3
)

// BaseURLSource yields the server base URL, or "" when none is stored.
type BaseURLSource interface {
	BaseURL(ctx context.Context) (string, error)
}

// TokenSource yields the stored bearer token, or "" when none is stored.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// PlaceholderTransport rewrites requests addressed to Placeholder onto the
// stored base URL. Requests pass through unchanged when no base URL is set
// or the URL does not start with Placeholder.
type PlaceholderTransport struct {
	Source BaseURLSource
	Next   http.RoundTripper
}

func (t *PlaceholderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	raw := req.URL.String()
	if !strings.HasPrefix(raw, Placeholder) {
		return t.Next.RoundTrip(req)
	}

	baseURL, err := t.Source.BaseURL(req.Context())
	if err != nil {
		return nil, fmt.Errorf("read base url: %w", err)
	}
	if baseURL == "" {
		return t.Next.RoundTrip(req)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/") + strings.TrimPrefix(raw, Placeholder))
	if err != nil {
		return nil, fmt.Errorf("rewrite %s onto %q: %w", raw, baseURL, err)
	}

	r := req.Clone(req.Context())
	r.URL = u
	r.Host = u.Host
	return t.Next.RoundTrip(r)
}

// HeaderTransport stamps every request with a request id and user agent.
// All retries of one request share the id.
type HeaderTransport struct {
	UserAgent string
	Next      http.RoundTripper
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get(HeaderRequestID) == "" {
		r.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if t.UserAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.UserAgent)
	}
	return t.Next.RoundTrip(r)
}

// LoggingTransport logs each exchange at debug level.
type LoggingTransport struct {
	Log  *slog.Logger
	Next http.RoundTripper
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Next.RoundTrip(req)

	attrs := []any{
		slog.String("method", req.Method),
		slog.String("url", redactQuery(req.URL)),
		slog.String("request_id", req.Header.Get(HeaderRequestID)),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		t.Log.DebugContext(req.Context(), "http request failed", append(attrs, slog.String("error", err.Error()))...)
		return nil, err
	}
	t.Log.DebugContext(req.Context(), "http request", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}

// redactQuery hides credential query values from logs.
func redactQuery(u *url.URL) string {
	q := u.Query()
	changed := false
	for _, k := range []string{"token", "key"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return u.String()
	}
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}

// RetryTransport retries a request that timed out, up to Attempts tries in
// total. Any other failure is returned at once. When every attempt times out
// the error wraps ErrRetriesExhausted and the last timeout.
type RetryTransport struct {
	Attempts int
	Log      *slog.Logger
	Next     http.RoundTripper
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	attempts := t.Attempts
	if attempts < 1 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		r := req
		if attempt > 1 {
			var err error
			if r, err = rewind(req); err != nil {
				return nil, errors.Join(lastErr, err)
			}
		}

		resp, err := t.Next.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		// A timeout of the caller's own context is final.
		if !isTimeout(err) || req.Context().Err() != nil {
			return nil, err
		}

		lastErr = err
		if t.Log != nil {
			t.Log.DebugContext(req.Context(), "request timed out",
				slog.Int("attempt", attempt),
				slog.Int("attempts", attempts),
				slog.String("url", redactQuery(req.URL)),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil, fmt.Errorf("%w (%d attempts): %w", ErrRetriesExhausted, attempts, lastErr)
}

func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("replay request body: %w", err)
	}
	r.Body = body
	return r, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// baseTransport bounds each attempt, not the whole retried call.
func baseTransport(timeout time.Duration) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = timeout
	tr.ResponseHeaderTimeout = timeout
	return tr
}
