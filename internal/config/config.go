package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	Auth      AuthConfig     `yaml:"auth"`
	Log       LogConfig      `yaml:"log"`
	Redis     RedisConfig    `yaml:"redis"`
	NATS      NATSConfig     `yaml:"nats"`
	Arena     ArenaConfig    `yaml:"arena"`
	Q3Servers []Q3Server     `yaml:"q3_servers"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	HTTPPort     int           `yaml:"http_port"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// RedisConfig points at the player name cache. An empty address keeps names in memory.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// NATSConfig controls where arena events are published. Embedded starts an
// in-process server on Port instead of dialing URL.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Embedded      bool   `yaml:"embedded"`
	Port          int    `yaml:"port"`
}

// ArenaConfig holds the duel arena thresholds and delays
type ArenaConfig struct {
	GameType              string        `yaml:"game_type"`
	MaxActivePlayers      int           `yaml:"max_active_players"`
	MaxPing               int           `yaml:"max_ping"`
	NormalToDuelThreshold int           `yaml:"normal_to_duel_threshold"`
	DuelToNormalThreshold int           `yaml:"duel_to_normal_threshold"`
	VoteRatio             float64       `yaml:"vote_ratio"`
	VoteMinVotes          int           `yaml:"vote_min_votes"`
	DisconnectDelay       time.Duration `yaml:"disconnect_delay"`
	LoadedDelay           time.Duration `yaml:"loaded_delay"`
	CountdownDelay        time.Duration `yaml:"countdown_delay"`
	RoundEndDelay         time.Duration `yaml:"round_end_delay"`
	VoteSound             string        `yaml:"vote_sound"`
	AdminPermission       int           `yaml:"admin_permission"`
}

// Q3Server represents a Quake Live server to drive
type Q3Server struct {
	Name         string         `yaml:"name"`
	Address      string         `yaml:"address"`
	LogPath      string         `yaml:"log_path"`
	RconPassword string         `yaml:"rcon_password"`
	Admins       map[string]int `yaml:"admins"` // player id -> permission level
}

// DefaultArena returns the arena settings used when the config leaves them out
func DefaultArena() ArenaConfig {
	a := ArenaConfig{}
	a.applyDefaults()
	return a
}

func (a *ArenaConfig) applyDefaults() {
	if a.GameType == "" {
		a.GameType = "ca"
	}
	if a.MaxActivePlayers == 0 {
		a.MaxActivePlayers = 5
	}
	if a.MaxPing == 0 {
		a.MaxPing = 990
	}
	if a.NormalToDuelThreshold == 0 {
		a.NormalToDuelThreshold = 11
	}
	if a.DuelToNormalThreshold == 0 {
		a.DuelToNormalThreshold = 6
	}
	if a.VoteRatio == 0 {
		a.VoteRatio = 0.5
	}
	if a.VoteMinVotes == 0 {
		a.VoteMinVotes = 2
	}
	if a.DisconnectDelay == 0 {
		a.DisconnectDelay = 3 * time.Second
	}
	if a.LoadedDelay == 0 {
		a.LoadedDelay = 3 * time.Second
	}
	if a.CountdownDelay == 0 {
		a.CountdownDelay = 3 * time.Second
	}
	if a.RoundEndDelay == 0 {
		a.RoundEndDelay = 1500 * time.Millisecond
	}
	if a.VoteSound == "" {
		a.VoteSound = "sound/vo/vote_passed.ogg"
	}
	if a.AdminPermission == 0 {
		a.AdminPermission = 5
	}
}

// Load reads configuration from a YAML file. A .env file next to the config
// (or in the working directory) is loaded first so ARENA_* overrides apply.
func Load(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
		return
	}
	// Missing .env is normal; fall back to the working directory
	_ = godotenv.Load()
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("ARENA_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ARENA_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ARENA_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ARENA_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("ARENA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ARENA_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.HTTPPort = port
		}
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.PollInterval == 0 {
		cfg.Server.PollInterval = 5 * time.Second
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/trinity-arena/arena.db"
	}
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "minqlx:players"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "arena"
	}
	if cfg.NATS.Embedded && cfg.NATS.Port == 0 {
		cfg.NATS.Port = 4222
	}
	cfg.Arena.applyDefaults()
}

// Validate checks settings that have no sensible default
func (cfg *Config) Validate() error {
	seen := make(map[string]bool)
	for i, srv := range cfg.Q3Servers {
		if srv.Address == "" {
			return fmt.Errorf("q3_servers[%d]: address is required", i)
		}
		if seen[srv.Address] {
			return fmt.Errorf("q3_servers[%d]: duplicate address %s", i, srv.Address)
		}
		seen[srv.Address] = true
	}
	if cfg.Arena.VoteRatio < 0 || cfg.Arena.VoteRatio >= 1 {
		return fmt.Errorf("arena.vote_ratio must be in [0, 1)")
	}
	if cfg.Arena.MaxActivePlayers < 3 {
		return fmt.Errorf("arena.max_active_players must be at least 3")
	}
	return nil
}

// Permission returns the permission level of a player on a server
func (s Q3Server) Permission(playerID string) int {
	return s.Admins[playerID]
}
