package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nice-pea/npc/internal/database"
	"github.com/nice-pea/npc/internal/logging"
	"github.com/nice-pea/npc/internal/models"
)

const (
	defaultMessagesLimit = 50
	maxMessagesLimit     = 500
)

// HealthHandler answers 200 while the database is reachable.
func (api *Api) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.db.Ping(r.Context()); err != nil {
		api.log.Warn("health check failed", logging.Err(err))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ChatsHandler lists the caller's chats with creator and last message.
func (api *Api) ChatsHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := authenticatedFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chats, err := api.db.UserChats(r.Context(), a.User.ID)
	if err != nil {
		api.log.Error("list chats", logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	out := make([]models.Chat, 0, len(chats))
	for i := range chats {
		out = append(out, toChat(&chats[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// MessagesHandler lists messages of chats the caller is a member of.
// Query: chat_ids (comma separated, required), before_id, limit.
func (api *Api) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := authenticatedFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	chatIDs, err := idsParam(q, "chat_ids")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(chatIDs) == 0 {
		http.Error(w, "chat_ids is required", http.StatusBadRequest)
		return
	}
	beforeID, err := idParam(q, "before_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := idParam(q, "limit")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if limit == 0 {
		limit = defaultMessagesLimit
	}
	limit = min(limit, maxMessagesLimit)

	for _, chatID := range chatIDs {
		member, err := api.db.IsMember(r.Context(), chatID, a.User.ID)
		if err != nil {
			api.log.Error("check membership", logging.Err(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if !member {
			http.Error(w, fmt.Sprintf("not a member of chat %d", chatID), http.StatusForbidden)
			return
		}
	}

	msgs, err := api.db.Messages(r.Context(), database.MessagesParams{
		ChatIDs:  chatIDs,
		BeforeID: beforeID,
		Limit:    int(limit),
	})
	if err != nil {
		api.log.Error("list messages", logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	out := make([]models.Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessage(&msgs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// idsParam parses a comma separated list of positive ids.
func idsParam(values url.Values, param string) ([]int64, error) {
	raw := values.Get(param)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid %s: expected comma separated positive integers", param)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// idParam parses an optional non-negative integer; absent means 0.
func idParam(values url.Values, param string) (int64, error) {
	raw := values.Get(param)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: expected a non-negative integer", param)
	}
	return v, nil
}
