package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/nice-pea/npc/internal/auth"
	"github.com/nice-pea/npc/internal/logging"
)

type ctxKey int

const authenticatedKey ctxKey = iota

// SessionAuthMiddleware requires a Bearer session token and puts the
// authenticated user into the request context.
func (api *Api) SessionAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			http.Error(w, "Authorization header format must be Bearer {token}", http.StatusUnauthorized)
			return
		}

		a, err := api.auth.Authenticate(r.Context(), token)
		if err != nil {
			if auth.IsUnauthorized(err) {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			api.log.Error("authenticate session", logging.Err(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), authenticatedKey, a)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authenticatedFrom(ctx context.Context) (*auth.Authenticated, bool) {
	a, ok := ctx.Value(authenticatedKey).(*auth.Authenticated)
	return a, ok
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
