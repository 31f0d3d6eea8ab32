package domain

import "time"

// Server represents a Quake Live server running the arena
type Server struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	LogPath   string    `json:"log_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ServerStatus represents the current state of a server from UDP query
type ServerStatus struct {
	ServerID    int64             `json:"server_id"`
	Name        string            `json:"name"`
	Address     string            `json:"address"`
	Map         string            `json:"map"`
	GameType    string            `json:"game_type"`
	MaxClients  int               `json:"max_clients"`
	Players     []PlayerStatus    `json:"players"`
	HumanCount  int               `json:"human_count"`
	BotCount    int               `json:"bot_count"`
	Online      bool              `json:"online"`
	LastUpdated time.Time         `json:"last_updated"`
	ServerVars  map[string]string `json:"server_vars,omitempty"`
	TeamScores  *TeamScores       `json:"team_scores,omitempty"`
	MatchState  string            `json:"match_state,omitempty"`
}

// TeamScores represents team scores for team game modes
type TeamScores struct {
	RedScore  int `json:"red"`
	BlueScore int `json:"blue"`
}

// PlayerStatus represents a player line from the getstatus response
type PlayerStatus struct {
	ClientNum int       `json:"client_num"`
	PlayerID  PlayerID  `json:"player_id,omitempty"`
	Name      string    `json:"name"`
	CleanName string    `json:"clean_name"`
	Score     int       `json:"score"`
	Ping      int       `json:"ping"`
	IsBot     bool      `json:"is_bot"`
	Team      int       `json:"team,omitempty"`
	JoinedAt  time.Time `json:"joined_at,omitempty"`
}
