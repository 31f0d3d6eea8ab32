package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ernie/trinity-arena/internal/domain"
)

// ErrNotFound is returned when a looked up row does not exist
var ErrNotFound = errors.New("not found")

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string
// The Z suffix ensures the Go sqlite driver parses it back as UTC
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

//go:embed schema.sql
var schema string

// Store provides database access
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Server methods ---

// UpsertServer creates or updates a server, filling in its ID
func (s *Store) UpsertServer(ctx context.Context, srv *domain.Server) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO servers (name, address, log_path)
		VALUES (?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			name = excluded.name,
			log_path = excluded.log_path
	`, srv.Name, srv.Address, srv.LogPath)
	if err != nil {
		return fmt.Errorf("upserting server %s: %w", srv.Address, err)
	}

	// LastInsertId is unreliable with ON CONFLICT
	return s.db.QueryRowContext(ctx, "SELECT id FROM servers WHERE address = ?", srv.Address).Scan(&srv.ID)
}

// GetServers returns all servers
func (s *Store) GetServers(ctx context.Context) ([]domain.Server, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, log_path, created_at FROM servers ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []domain.Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *srv)
	}
	return servers, rows.Err()
}

// GetServerByID returns a server by ID
func (s *Store) GetServerByID(ctx context.Context, id int64) (*domain.Server, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, log_path, created_at FROM servers WHERE id = ?
	`, id)
	srv, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return srv, err
}

// --- Arena journal ---

// RecordArenaEvent appends an arena event to the journal
func (s *Store) RecordArenaEvent(ctx context.Context, e domain.Event) error {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", e.Type, err)
	}

	var sessionID *string
	if id := e.SessionID(); id != "" {
		sessionID = &id
	}

	createdAt := e.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO arena_events (server_id, session_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ServerID, sessionID, e.Type, string(payload), formatTimestamp(createdAt))
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.Type, err)
	}
	return nil
}

// ArenaEventFilter narrows a journal query
type ArenaEventFilter struct {
	ServerID  int64
	SessionID string // optional
	BeforeID  int64  // optional, for paging backwards
	Limit     int
}

// GetArenaEvents returns journaled events, newest first
func (s *Store) GetArenaEvents(ctx context.Context, filter ArenaEventFilter) ([]domain.ArenaEventRecord, error) {
	query := `
		SELECT id, server_id, session_id, event_type, payload, created_at
		FROM arena_events WHERE server_id = ?`
	args := []any{filter.ServerID}

	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.BeforeID > 0 {
		query += " AND id < ?"
		args = append(args, filter.BeforeID)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.ArenaEventRecord{}
	for rows.Next() {
		rec, err := scanArenaEvent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// DeleteArenaEventsBefore prunes journal rows older than the cutoff
func (s *Store) DeleteArenaEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM arena_events WHERE created_at < ?
	`, formatTimestamp(cutoff))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// --- User methods ---

// User represents an admin API account
type User struct {
	ID                     int64
	Username               string
	PasswordHash           string
	IsAdmin                bool
	PasswordChangeRequired bool
	CreatedAt              time.Time
	LastLogin              *time.Time
}

// CreateUser creates a new user account
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, is_admin, password_change_required)
		VALUES (?, ?, ?, TRUE)
	`, username, passwordHash, isAdmin)
	return err
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin, password_change_required, created_at, last_login
		FROM users WHERE username = ?
	`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_admin, password_change_required, created_at, last_login
		FROM users WHERE id = ?
	`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// DeleteUser removes a user by username
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return nil
}

// ListUsers returns all users
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, is_admin, password_change_required, created_at, last_login
		FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// UpdateUserLastLogin updates the last login timestamp
func (s *Store) UpdateUserLastLogin(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_login = ? WHERE id = ?
	`, formatTimestamp(time.Now()), userID)
	return err
}

// UpdateUserPassword updates a user's password and clears the password_change_required flag
func (s *Store) UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, password_change_required = FALSE WHERE id = ?
	`, newPasswordHash, userID)
	return err
}

// ResetUserPassword sets a new temporary password (admin action)
func (s *Store) ResetUserPassword(ctx context.Context, userID int64, newPasswordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, password_change_required = TRUE WHERE id = ?
	`, newPasswordHash, userID)
	return err
}
