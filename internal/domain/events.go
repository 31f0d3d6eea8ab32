package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Event types for WebSocket, NATS and journal consumers
const (
	EventPlayerJoin   = "player_join"
	EventPlayerLeave  = "player_leave"
	EventServerUpdate = "server_update"
	EventMatchStart   = "match_start"
	EventMatchEnd     = "match_end"
	EventTeamChange   = "team_change"

	EventArenaActivated   = "arena_activated"
	EventArenaDeactivated = "arena_deactivated"
	EventArenaDuel        = "arena_duel"
	EventArenaRotation    = "arena_rotation"
	EventArenaStandings   = "arena_standings"
	EventArenaStrategy    = "arena_strategy"
	EventArenaVote        = "arena_vote"
	EventArenaJoin        = "arena_join"
)

// IsArenaEvent reports whether an event type is produced by the duel arena
func IsArenaEvent(eventType string) bool {
	return strings.HasPrefix(eventType, "arena_")
}

// Event represents a real-time event for broadcast
type Event struct {
	Type      string      `json:"event"`
	ServerID  int64       `json:"server_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// SessionID returns the arena session an event belongs to, if any
func (e Event) SessionID() string {
	switch d := e.Data.(type) {
	case ArenaModeEvent:
		return d.SessionID
	case ArenaDuelEvent:
		return d.SessionID
	case ArenaRotationEvent:
		return d.SessionID
	case ArenaStandingsEvent:
		return d.SessionID
	case ArenaJoinEvent:
		return d.SessionID
	}
	return ""
}

// PlayerJoinEvent is sent when a player connects
type PlayerJoinEvent struct {
	Player PlayerStatus `json:"player"`
}

// PlayerLeaveEvent is sent when a player disconnects
type PlayerLeaveEvent struct {
	PlayerName string   `json:"player_name"`
	PlayerID   PlayerID `json:"player_id,omitempty"`
}

// MatchStartEvent is sent when a new map starts
type MatchStartEvent struct {
	Map      string `json:"map"`
	GameType string `json:"game_type"`
	Factory  string `json:"factory,omitempty"`
}

// MatchEndEvent is sent when a match ends
type MatchEndEvent struct {
	ExitReason string `json:"exit_reason"`
	RedScore   int    `json:"red_score"`
	BlueScore  int    `json:"blue_score"`
}

// TeamChangeEvent is sent when a player changes teams
type TeamChangeEvent struct {
	PlayerName string   `json:"player_name"`
	PlayerID   PlayerID `json:"player_id,omitempty"`
	OldTeam    Team     `json:"old_team"`
	NewTeam    Team     `json:"new_team"`
}

// ArenaModeEvent is sent when duel mode turns on or off
type ArenaModeEvent struct {
	SessionID string `json:"session_id"`
	Strategy  string `json:"strategy"`
	Pending   bool   `json:"pending,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ArenaDuelEvent is sent when a duel pairing is (re)initialized
type ArenaDuelEvent struct {
	SessionID string   `json:"session_id"`
	Red       PlayerID `json:"red"`
	Blue      PlayerID `json:"blue"`
}

// ArenaRotationEvent is sent after a round loser was swapped for the next player
type ArenaRotationEvent struct {
	SessionID string   `json:"session_id"`
	Winner    PlayerID `json:"winner,omitempty"`
	Loser     PlayerID `json:"loser,omitempty"`
	Next      PlayerID `json:"next"`
	Team      Team     `json:"team"`
	Delta     int      `json:"delta"`
}

// Standing is one line of the arena results
type Standing struct {
	Place    int      `json:"place"`
	PlayerID PlayerID `json:"player_id"`
	Name     string   `json:"name,omitempty"`
	Wins     int      `json:"wins"`
}

// ArenaStandingsEvent carries the printed results
type ArenaStandingsEvent struct {
	SessionID string     `json:"session_id"`
	Standings []Standing `json:"standings"`
}

// ArenaStrategyEvent is sent when the activation strategy changes
type ArenaStrategyEvent struct {
	Strategy string `json:"strategy"`
	Source   string `json:"source"`
}

// ArenaVoteEvent is sent for every accepted activation vote
type ArenaVoteEvent struct {
	PlayerID PlayerID `json:"player_id"`
	Votes    int      `json:"votes"`
	Needed   int      `json:"needed"`
	Passed   bool     `json:"passed"`
}

// ArenaJoinEvent is sent when a spectator opts into a running duel
type ArenaJoinEvent struct {
	SessionID string   `json:"session_id"`
	PlayerID  PlayerID `json:"player_id"`
	Name      string   `json:"name"`
}

// ArenaState is a point-in-time view of one server's arena controller
type ArenaState struct {
	ServerID  int64      `json:"server_id"`
	Active    bool       `json:"active"`
	Pending   bool       `json:"pending"`
	Strategy  string     `json:"strategy"`
	SessionID string     `json:"session_id,omitempty"`
	Playerset []PlayerID `json:"playerset"`
	Queue     []PlayerID `json:"queue"`
	Standings []Standing `json:"standings"`
	Votes     int        `json:"votes"`
}

// ArenaEventRecord is a journaled arena event
type ArenaEventRecord struct {
	ID        int64           `json:"id"`
	ServerID  int64           `json:"server_id"`
	SessionID string          `json:"session_id,omitempty"`
	Type      string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
