// Package api is the ops HTTP surface: operator login, bridge status, the
// recent-events view and an ad-hoc console passthrough. It is an operator
// tool, not part of the bridge itself.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/craftlink/craftlink/internal/auth"
	"github.com/craftlink/craftlink/internal/console"
	"github.com/craftlink/craftlink/internal/gamelog"
	"github.com/craftlink/craftlink/internal/presence"
	"github.com/craftlink/craftlink/internal/store"
)

type AuthHandler struct {
	auth *auth.Service
}

func NewAuthHandler(authSvc *auth.Service) *AuthHandler {
	return &AuthHandler{auth: authSvc}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if len(token) > 7 && token[:7] == "Bearer " {
		token = token[7:]
	}
	h.auth.Logout(token)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type StatusHandler struct {
	sup     *console.Supervisor
	poller  *presence.Poller
	ring    *gamelog.Ring
	started time.Time
}

func NewStatusHandler(sup *console.Supervisor, poller *presence.Poller, ring *gamelog.Ring) *StatusHandler {
	return &StatusHandler{sup: sup, poller: poller, ring: ring, started: time.Now()}
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	roster, editedAt := h.poller.LastAnnounced()
	writeJSON(w, http.StatusOK, map[string]any{
		"console":        h.sup.State().String(),
		"roster":         roster,
		"roster_edited":  editedAt,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

func (h *StatusHandler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ring.Recent())
}

type ServersHandler struct {
	store *store.Store
}

func NewServersHandler(st *store.Store) *ServersHandler {
	return &ServersHandler{store: st}
}

// serverView is the operator-facing projection of a server record. The
// console password never leaves the process.
type serverView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (h *ServersHandler) List(w http.ResponseWriter, r *http.Request) {
	servers, err := h.store.Servers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list servers")
		return
	}
	views := make([]serverView, 0, len(servers))
	for _, s := range servers {
		views = append(views, serverView{ID: s.ID, Name: s.Name, Host: s.Host, Port: s.Port})
	}
	writeJSON(w, http.StatusOK, views)
}

// Console relays one ad-hoc command through the supervised connection.
func (h *StatusHandler) Console(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Command == "" {
		writeError(w, http.StatusBadRequest, "command required")
		return
	}

	sess := h.sup.Current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "console not connected")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	resp, err := sess.Send(ctx, req.Command)
	if err != nil {
		writeError(w, http.StatusBadGateway, "console command failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": resp})
}
