package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/storage"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeInternal logs the cause with the request's logger and hides it from the client
func writeInternal(w http.ResponseWriter, req *http.Request, err error, message string) {
	zerolog.Ctx(req.Context()).Error().Err(err).Str("path", req.URL.Path).Msg(message)
	writeError(w, http.StatusInternalServerError, message)
}

// parseID parses an ID from the URL path
func parseID(req *http.Request, param string) (int64, error) {
	return strconv.ParseInt(req.PathValue(param), 10, 64)
}

// parseLimit parses and validates a limit parameter with default and max values
func parseLimit(req *http.Request, name string, defaultLimit, maxLimit int) int {
	if l := req.URL.Query().Get(name); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			return parsed
		}
	}
	return defaultLimit
}

// parseBeforeID parses a cursor for paging backwards, zero when absent
func parseBeforeID(req *http.Request) int64 {
	if b := req.URL.Query().Get("before"); b != "" {
		if parsed, err := strconv.ParseInt(b, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 0
}

// clientIP extracts the real client IP, checking proxy headers first
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (r *Router) handleGetServers(w http.ResponseWriter, req *http.Request) {
	servers, err := r.store.GetServers(req.Context())
	if err != nil {
		writeInternal(w, req, err, "failed to list servers")
		return
	}
	writeJSON(w, http.StatusOK, servers)
}

func (r *Router) handleGetServer(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	server, err := r.store.GetServerByID(req.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}
	if err != nil {
		writeInternal(w, req, err, "failed to load server")
		return
	}
	writeJSON(w, http.StatusOK, server)
}

// handleGetServerStatus returns the last poll of a server
func (r *Router) handleGetServerStatus(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid server id")
		return
	}

	status := r.manager.GetServerStatus(id)
	if status == nil {
		writeError(w, http.StatusNotFound, "server status not available")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (r *Router) handleGetAllStatuses(w http.ResponseWriter, req *http.Request) {
	statuses := r.manager.GetAllStatuses()
	if statuses == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
