package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/auth"
	"github.com/ernie/trinity-arena/internal/domain"
	"github.com/ernie/trinity-arena/internal/duelarena"
	"github.com/ernie/trinity-arena/internal/storage"
)

// Manager is the live side of the API, implemented by collector.ServerManager
type Manager interface {
	Events() <-chan domain.Event
	GetServerStatus(serverID int64) *domain.ServerStatus
	GetAllStatuses() []domain.ServerStatus
	ArenaState(serverID int64) (domain.ArenaState, error)
	SetArenaStrategy(serverID int64, s duelarena.Strategy, source string) error
	ExecuteRcon(serverID int64, command string) (string, error)
	HasRconAccess(serverID int64) bool
	RecentLog(serverID int64, n int) ([]string, error)
}

// Store is the persisted side of the API, implemented by storage.Store
type Store interface {
	auth.UserStore
	GetServers(ctx context.Context) ([]domain.Server, error)
	GetServerByID(ctx context.Context, id int64) (*domain.Server, error)
	GetArenaEvents(ctx context.Context, filter storage.ArenaEventFilter) ([]domain.ArenaEventRecord, error)
	GetUserByID(ctx context.Context, id int64) (*storage.User, error)
	ListUsers(ctx context.Context) ([]storage.User, error)
	DeleteUser(ctx context.Context, username string) error
	UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) error
}

// Router holds the HTTP routes and dependencies
type Router struct {
	mux     *http.ServeMux
	store   Store
	manager Manager
	wsHub   *WebSocketHub
	auth    *auth.Service
	log     zerolog.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(store Store, manager Manager, authService *auth.Service, logger zerolog.Logger) *Router {
	logger = logger.With().Str("component", "api").Logger()
	r := &Router{
		mux:     http.NewServeMux(),
		store:   store,
		manager: manager,
		wsHub:   NewWebSocketHub(logger),
		auth:    authService,
		log:     logger,
	}

	r.mux.HandleFunc("GET /api/servers", r.handleGetServers)
	r.mux.HandleFunc("GET /api/servers/{id}", r.handleGetServer)
	r.mux.HandleFunc("GET /api/servers/{id}/status", r.handleGetServerStatus)
	r.mux.HandleFunc("GET /api/status", r.handleGetAllStatuses)

	// Arena routes
	r.mux.HandleFunc("GET /api/servers/{id}/arena", r.handleGetArena)
	r.mux.HandleFunc("POST /api/servers/{id}/arena/strategy", r.requireAdmin(r.handleSetArenaStrategy))
	r.mux.HandleFunc("GET /api/servers/{id}/arena/events", r.handleGetArenaEvents)

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("GET /api/auth/check", r.handleAuthCheck)
	r.mux.HandleFunc("POST /api/auth/change-password", r.requireAuth(r.handleChangePassword))

	// User management routes (admin only)
	r.mux.HandleFunc("GET /api/users", r.requireAdmin(r.handleListUsers))
	r.mux.HandleFunc("DELETE /api/users/{username}", r.requireAdmin(r.handleDeleteUser))

	// RCON routes (admin only)
	r.mux.HandleFunc("POST /api/servers/{id}/rcon", r.requireAdmin(r.handleRconCommand))
	r.mux.HandleFunc("GET /api/servers/{id}/rcon-status", r.handleRconStatus)
	r.mux.HandleFunc("GET /api/servers/{id}/log", r.requireAdmin(r.handleRecentLog))

	r.mux.HandleFunc("GET /ws", r.handleWebSocket)
	r.mux.HandleFunc("GET /health", r.handleHealth)

	return r
}

// Handler returns the router wrapped in request logging and compression.
// The websocket endpoint is left uncompressed so the upgrade can hijack the
// connection.
func (r *Router) Handler() http.Handler {
	compressed := gzhttp.GzipHandler(r)
	inner := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/ws") {
			r.ServeHTTP(w, req)
			return
		}
		compressed.ServeHTTP(w, req)
	})
	return RequestID(r.log)(inner)
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// StartWebSocketHub starts broadcasting manager events to websocket clients
// until ctx is done
func (r *Router) StartWebSocketHub(ctx context.Context) {
	go r.wsHub.Run(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-r.manager.Events():
				if !ok {
					return
				}
				r.wsHub.Broadcast(event)
			}
		}
	}()
}
