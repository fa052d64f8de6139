package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrRetriesExhausted is returned once every attempt of a request timed out.
	// The last timeout is wrapped alongside it.
	ErrRetriesExhausted = errors.New("request timed out on every attempt")

	// ErrNoBaseURL means a request bound to the placeholder host was made
	// before any server was stored.
	ErrNoBaseURL = errors.New("no server configured, log in first")

	ErrNoServer = errors.New("server address is empty")
)

// HTTPError is a non-2xx response. Message is the status reason phrase.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
}

func newHTTPError(resp *http.Response, body []byte) *HTTPError {
	msg := strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Body:       strings.TrimSpace(string(body)),
	}
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return e.Message
}

// DecodeError is a 2xx response whose body could not be decoded, including
// a malformed date anywhere in it.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err ended in a timeout, including retries exhausted.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrRetriesExhausted) || isTimeout(err)
}
