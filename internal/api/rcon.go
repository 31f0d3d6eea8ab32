package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/collector"
)

// RconRequest is the request body for RCON commands
type RconRequest struct {
	Command string `json:"command"`
}

// RconResponse is the response body for RCON commands
type RconResponse struct {
	Output string `json:"output"`
}

// handleRconCommand executes an RCON command on a server (admin only)
func (r *Router) handleRconCommand(w http.ResponseWriter, req *http.Request) {
	serverID, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	var rconReq RconRequest
	if err := json.NewDecoder(req.Body).Decode(&rconReq); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rconReq.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	output, err := r.manager.ExecuteRcon(serverID, rconReq.Command)
	if errors.Is(err, collector.ErrUnknownServer) {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	claims := r.getAuthClaims(req)
	zerolog.Ctx(req.Context()).Info().
		Int64("server_id", serverID).
		Str("user", claims.Username).
		Str("command", rconReq.Command).
		Msg("RCON command executed")

	writeJSON(w, http.StatusOK, RconResponse{Output: output})
}

// handleRconStatus returns whether RCON is available for a server (no auth needed)
func (r *Router) handleRconStatus(w http.ResponseWriter, req *http.Request) {
	serverID, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": r.manager.HasRconAccess(serverID)})
}

// handleRecentLog returns the tail of a server's game log (admin only)
func (r *Router) handleRecentLog(w http.ResponseWriter, req *http.Request) {
	serverID, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	lines, err := r.manager.RecentLog(serverID, parseLimit(req, "lines", 200, 2000))
	if errors.Is(err, collector.ErrUnknownServer) {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	if err != nil {
		writeInternal(w, req, err, "failed to read log")
		return
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"lines": lines})
}
