// Package client talks to an npc server over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nice-pea/npc/internal/models"
)

const maxErrorBody = 4 << 10

// Options configures a Client. BaseURL and Token may be nil when only the
// explicit-server calls (Health, Authn, Login) are used.
type Options struct {
	BaseURL   BaseURLSource
	Token     TokenSource
	Attempts  int
	Timeout   time.Duration
	UserAgent string
	Log       *slog.Logger

	// Transport replaces the network transport, mostly for tests.
	Transport http.RoundTripper
}

// Client is the npc API client.
type Client struct {
	http    *http.Client
	baseURL BaseURLSource
	token   TokenSource
}

// New builds a Client. The transport chain runs placeholder rewrite, request
// headers, logging and retry, in that order, before reaching the network.
func New(opts Options) *Client {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BaseURL == nil {
		opts.BaseURL = staticBaseURL("")
	}

	next := opts.Transport
	if next == nil {
		next = baseTransport(opts.Timeout)
	}

	next = &RetryTransport{Attempts: opts.Attempts, Log: opts.Log, Next: next}
	next = &LoggingTransport{Log: opts.Log, Next: next}
	next = &HeaderTransport{UserAgent: opts.UserAgent, Next: next}
	next = &PlaceholderTransport{Source: opts.BaseURL, Next: next}

	return &Client{
		http:    &http.Client{Transport: next},
		baseURL: opts.BaseURL,
		token:   opts.Token,
	}
}

// ResolveBaseURL picks the stored base URL, then the given fallback, then Placeholder.
func ResolveBaseURL(stored, fallback string) string {
	switch {
	case stored != "":
		return stored
	case fallback != "":
		return fallback
	default:
		return Placeholder
	}
}

// Health checks that server answers GET /health with any 2xx.
func (c *Client) Health(ctx context.Context, server string) error {
	const op = "client.Health"

	u, err := serverURL(server, "/health", nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.get(ctx, op, u, "", nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Authn validates token against server and returns the refreshed session.
func (c *Client) Authn(ctx context.Context, server, token string) (*models.AuthnResult, error) {
	const op = "client.Authn"

	u, err := serverURL(server, "/authn", url.Values{"token": {token}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out models.AuthnResult
	if err := c.get(ctx, op, u, "", &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// Login exchanges an access key for a new session on server.
func (c *Client) Login(ctx context.Context, server, key string) (*models.LoginResult, error) {
	const op = "client.Login"

	u, err := serverURL(server, "/authn/login", url.Values{"key": {key}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out models.LoginResult
	if err := c.get(ctx, op, u, "", &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// Chats lists the chats of the stored session's user on the stored server.
func (c *Client) Chats(ctx context.Context) ([]models.Chat, error) {
	const op = "client.Chats"

	token, err := c.prepareStored(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var out []models.Chat
	if err := c.get(ctx, op, Placeholder+"/chats", token, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// MessagesQuery selects messages of one chat. Zero BeforeID and Limit mean unbounded.
type MessagesQuery struct {
	ChatID   int64
	BeforeID int64
	Limit    int
}

// Messages lists messages of a chat on the stored server, ordered by id.
func (c *Client) Messages(ctx context.Context, q MessagesQuery) ([]models.Message, error) {
	const op = "client.Messages"

	token, err := c.prepareStored(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	params := url.Values{"chat_ids": {strconv.FormatInt(q.ChatID, 10)}}
	if q.BeforeID > 0 {
		params.Set("before_id", strconv.FormatInt(q.BeforeID, 10))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var out []models.Message
	if err := c.get(ctx, op, Placeholder+"/messages?"+params.Encode(), token, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// prepareStored fails fast when no server is stored and returns the bearer token.
func (c *Client) prepareStored(ctx context.Context) (string, error) {
	baseURL, err := c.baseURL.BaseURL(ctx)
	if err != nil {
		return "", err
	}
	if baseURL == "" {
		return "", ErrNoBaseURL
	}
	if c.token == nil {
		return "", nil
	}
	return c.token.Token(ctx)
}

func (c *Client) get(ctx context.Context, op, rawURL, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newHTTPError(resp, body)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// NormalizeServer trims surrounding space and trailing slashes from a server
// address and checks it is an absolute http or https URL. The result is the
// form requests are built from and the form a base URL is stored in.
func NormalizeServer(server string) (string, error) {
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		return "", ErrNoServer
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid server address %q: scheme must be http or https", server)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server address %q: missing host", server)
	}
	return server, nil
}

func serverURL(server, path string, query url.Values) (string, error) {
	server, err := NormalizeServer(server)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(server + path)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", server, err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

type staticBaseURL string

func (s staticBaseURL) BaseURL(context.Context) (string, error) {
	return string(s), nil
}
