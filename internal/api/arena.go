package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ernie/trinity-arena/internal/collector"
	"github.com/ernie/trinity-arena/internal/duelarena"
	"github.com/ernie/trinity-arena/internal/storage"
)

// StrategyRequest is the request body for switching the activation strategy
type StrategyRequest struct {
	Strategy string `json:"strategy"`
}

func (r *Router) handleGetArena(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	state, err := r.manager.ArenaState(id)
	if errors.Is(err, collector.ErrUnknownServer) {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	if err != nil {
		writeInternal(w, req, err, "failed to read arena state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleSetArenaStrategy switches between auto and force (admin only)
func (r *Router) handleSetArenaStrategy(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	var body StrategyRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	strategy, err := duelarena.ParseStrategy(body.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, "strategy must be auto or force")
		return
	}

	source := "api"
	if claims := r.getAuthClaims(req); claims != nil {
		source = "api:" + claims.Username
	}
	if err := r.manager.SetArenaStrategy(id, strategy, source); err != nil {
		if errors.Is(err, collector.ErrUnknownServer) {
			writeError(w, http.StatusNotFound, "server not found")
			return
		}
		writeInternal(w, req, err, "failed to set strategy")
		return
	}

	state, err := r.manager.ArenaState(id)
	if err != nil {
		writeInternal(w, req, err, "failed to read arena state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleGetArenaEvents pages through the arena journal, newest first
func (r *Router) handleGetArenaEvents(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	events, err := r.store.GetArenaEvents(req.Context(), storage.ArenaEventFilter{
		ServerID:  id,
		SessionID: req.URL.Query().Get("session"),
		BeforeID:  parseBeforeID(req),
		Limit:     parseLimit(req, "limit", 50, 500),
	})
	if err != nil {
		writeInternal(w, req, err, "failed to read arena events")
		return
	}
	if events == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, events)
}
