package api

import (
	"net/http"

	"github.com/nice-pea/npc/internal/auth"
	"github.com/nice-pea/npc/internal/logging"
	"github.com/nice-pea/npc/internal/models"
)

// AuthnHandler resolves a session token, given as ?token= or a Bearer
// header, to its user and session.
func (api *Api) AuthnHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = bearerToken(r)
	}
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}

	a, err := api.auth.Authenticate(r.Context(), token)
	if err != nil {
		api.authError(w, "authn", err)
		return
	}

	writeJSON(w, http.StatusOK, models.AuthnResult{
		User:    toUser(a.User),
		Session: toSession(a.Session, a.Token),
	})
}

// LoginHandler opens a session for the owner of ?key=.
func (api *Api) LoginHandler(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	a, err := api.auth.Login(r.Context(), key)
	if err != nil {
		api.authError(w, "login", err)
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResult{
		User:    toUser(a.User),
		Session: toSession(a.Session, a.Token),
	})
}

func (api *Api) authError(w http.ResponseWriter, op string, err error) {
	if auth.IsUnauthorized(err) {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	api.log.Error(op+" failed", logging.Err(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
