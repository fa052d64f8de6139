// Package session drives start-up authentication and login on top of the
// stored credentials and the npc API client.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nice-pea/npc/internal/client"
	"github.com/nice-pea/npc/internal/logging"
	"github.com/nice-pea/npc/internal/models"
	"github.com/nice-pea/npc/internal/store"
)

var (
	ErrNoSavedCredentials = errors.New("no saved credentials")
	ErrEmptyKey           = errors.New("access key is empty")
	ErrNoSessionToken     = errors.New("response has no session token")
)

// missingToken reports a 2xx response that carried no session token. It is
// a decode failure: nothing usable came back.
func missingToken(op string) error {
	return &client.DecodeError{Op: op, Err: ErrNoSessionToken}
}

type State int

const (
	Unauthenticated State = iota
	Checking
	Authenticated
	CheckFailed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case CheckFailed:
		return "check_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Route is where the front end should go after a check.
type Route string

const (
	// RouteSplash keeps the user on the start screen, showing the error.
	RouteSplash Route = "splash"
	RouteLogin  Route = "login"
	RouteChats  Route = "chats"
)

// API is the part of the npc client the flow depends on.
type API interface {
	Health(ctx context.Context, server string) error
	Authn(ctx context.Context, server, token string) (*models.AuthnResult, error)
	Login(ctx context.Context, server, key string) (*models.LoginResult, error)
	Chats(ctx context.Context) ([]models.Chat, error)
	Messages(ctx context.Context, q client.MessagesQuery) ([]models.Message, error)
}

// Result is the outcome of a check or a login.
type Result struct {
	State State
	Route Route
	User  *models.User
	Err   error
}

// Message is the text shown to the user for a failed result.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	if msg := strings.TrimSpace(r.Err.Error()); msg != "" {
		return msg
	}
	return "unknown error"
}

// Flow owns the authentication state of one client. Operations are meant to
// run one at a time; State may be read concurrently.
type Flow struct {
	api    API
	prefs  store.Store
	auth   *store.AuthStore
	client *store.ClientStore
	log    *slog.Logger

	mu    sync.RWMutex
	state State
}

func New(api API, prefs store.Store, log *slog.Logger) *Flow {
	if log == nil {
		log = logging.Discard()
	}
	return &Flow{
		api:    api,
		prefs:  prefs,
		auth:   store.NewAuthStore(prefs),
		client: store.NewClientStore(prefs),
		log:    log,
		state:  Unauthenticated,
	}
}

func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// CheckAuthn validates the stored token against the stored server. Without a
// stored token or server no request is made and the result routes to login.
// A successful check stores the refreshed token. A failed one keeps the old
// token and reports the error.
func (f *Flow) CheckAuthn(ctx context.Context) Result {
	const op = "session.CheckAuthn"
	log := f.log.With(slog.String("op", op))

	token, err := f.auth.Token(ctx)
	if err != nil {
		return f.fail(fmt.Errorf("%s: read token: %w", op, err))
	}
	server, err := f.client.BaseURL(ctx)
	if err != nil {
		return f.fail(fmt.Errorf("%s: read base url: %w", op, err))
	}

	if strings.TrimSpace(token) == "" || strings.TrimSpace(server) == "" {
		f.setState(Unauthenticated)
		log.Info("no saved credentials")
		return Result{State: Unauthenticated, Route: RouteLogin, Err: ErrNoSavedCredentials}
	}

	f.setState(Checking)
	res, err := f.api.Authn(ctx, server, token)
	if err != nil {
		log.Warn("authn failed", logging.Err(err))
		return f.fail(err)
	}
	if strings.TrimSpace(res.Session.Token) == "" {
		log.Warn("authn response has no session token")
		return f.fail(missingToken("client.Authn"))
	}

	if err := f.auth.SetToken(ctx, res.Session.Token); err != nil {
		return f.fail(fmt.Errorf("%s: save token: %w", op, err))
	}

	f.setState(Authenticated)
	log.Info("authenticated", slog.Int64("user_id", res.User.ID))
	return Result{State: Authenticated, Route: RouteChats, User: &res.User}
}

// CheckConn reports whether server is reachable and healthy. Nothing is stored.
func (f *Flow) CheckConn(ctx context.Context, server string) error {
	return f.api.Health(ctx, server)
}

// Login checks server health, then exchanges key for a session. server is
// normalised first and that form is checked, used and stored. On success the
// token, key and server are stored together.
func (f *Flow) Login(ctx context.Context, server, key string) Result {
	const op = "session.Login"
	log := f.log.With(slog.String("op", op), slog.String("server", server))

	if strings.TrimSpace(key) == "" {
		return f.loginFailed(ErrEmptyKey)
	}

	server, err := client.NormalizeServer(server)
	if err != nil {
		return f.loginFailed(err)
	}

	if err := f.api.Health(ctx, server); err != nil {
		log.Warn("health check failed", logging.Err(err))
		return f.loginFailed(err)
	}

	res, err := f.api.Login(ctx, server, key)
	if err != nil {
		log.Warn("login failed", logging.Err(err))
		return f.loginFailed(err)
	}
	if strings.TrimSpace(res.Session.Token) == "" {
		return f.loginFailed(missingToken("client.Login"))
	}

	if err := store.SaveLogin(ctx, f.prefs, res.Session.Token, key, server); err != nil {
		return f.loginFailed(err)
	}

	f.setState(Authenticated)
	log.Info("logged in", slog.Int64("user_id", res.User.ID))
	return Result{State: Authenticated, Route: RouteChats, User: &res.User}
}

// Chats lists chats on the stored server.
func (f *Flow) Chats(ctx context.Context) ([]models.Chat, error) {
	return f.api.Chats(ctx)
}

// Messages lists messages of a chat on the stored server.
func (f *Flow) Messages(ctx context.Context, q client.MessagesQuery) ([]models.Message, error) {
	return f.api.Messages(ctx, q)
}

func (f *Flow) fail(err error) Result {
	f.setState(CheckFailed)
	return Result{State: CheckFailed, Route: RouteSplash, Err: err}
}

// loginFailed leaves the state alone: a failed login does not change what
// the stored credentials are worth.
func (f *Flow) loginFailed(err error) Result {
	return Result{State: f.State(), Route: RouteLogin, Err: err}
}
