package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ernie/trinity-arena/internal/domain"
)

func scanNullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func scanNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanServer(s scanner) (*domain.Server, error) {
	var srv domain.Server
	var logPath sql.NullString
	if err := s.Scan(&srv.ID, &srv.Name, &srv.Address, &logPath, &srv.CreatedAt); err != nil {
		return nil, err
	}
	srv.LogPath = scanNullStringValue(logPath)
	return &srv, nil
}

// scanUser scans a user row from the database
func scanUser(s scanner) (*User, error) {
	var user User
	var lastLogin sql.NullTime
	err := s.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin,
		&user.PasswordChangeRequired, &user.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	user.LastLogin = scanNullTime(lastLogin)
	return &user, nil
}

func scanArenaEvent(s scanner) (*domain.ArenaEventRecord, error) {
	var rec domain.ArenaEventRecord
	var sessionID sql.NullString
	var payload string
	if err := s.Scan(&rec.ID, &rec.ServerID, &sessionID, &rec.Type, &payload, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.SessionID = scanNullStringValue(sessionID)
	rec.Payload = json.RawMessage(payload)
	return &rec, nil
}
