// arena - DuelArena rotation for Quake Live clan arena servers
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/ernie/trinity-arena/internal/api"
	"github.com/ernie/trinity-arena/internal/auth"
	"github.com/ernie/trinity-arena/internal/broker"
	"github.com/ernie/trinity-arena/internal/collector"
	"github.com/ernie/trinity-arena/internal/config"
	"github.com/ernie/trinity-arena/internal/logger"
	"github.com/ernie/trinity-arena/internal/playercache"
	"github.com/ernie/trinity-arena/internal/storage"
)

var version = "dev"

const defaultConfigPath = "/etc/trinity-arena/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "arena":
		cmdArena(os.Args[2:])
	case "events":
		cmdEvents(os.Args[2:])
	case "user":
		cmdUser(os.Args[2:])
	case "version":
		fmt.Printf("arena %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: arena <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                               Start the arena service")
	fmt.Println("  status                              Show all servers status")
	fmt.Println("  arena show [server]                 Show duel arena state (all servers by default)")
	fmt.Println("  arena auto <server>                 Run duel mode with exactly three players")
	fmt.Println("  arena force <server>                Run duel mode with three or more players")
	fmt.Println("  events <server> [--limit N]         Show the arena journal for a server")
	fmt.Println("  events prune [--older-than D]       Delete journal rows older than D (default 720h)")
	fmt.Println("  user add [--admin] <username>       Add a user (prompts for password)")
	fmt.Println("  user remove <username>              Remove a user")
	fmt.Println("  user list                           List all users")
	fmt.Println("  user reset <username>               Reset a user's password")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/trinity-arena/config.yml)")
	fmt.Println("  --url <url>        Base URL of the arena service (default: derived from config)")
	fmt.Println("  --user <name>      Admin account for arena auto|force (prompts for password)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  arena serve --config /etc/trinity-arena/config.yml")
	fmt.Println("  arena arena force 1 --user admin")
	fmt.Println("  arena events 1 --limit 20")
	fmt.Println("  arena user add --admin admin")
}

// cmdServe runs the collector and HTTP API until interrupted
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level)
	if err := serve(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Arena service failed")
	}
}

func serve(cfg *config.Config, log zerolog.Logger) error {
	log.Info().Str("version", version).Int("servers", len(cfg.Q3Servers)).Msg("Arena starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer store.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	names, closeNames, err := openPlayerCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeNames()

	publisher, closePublisher, err := openPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	manager := collector.NewServerManager(cfg, store, names, publisher, log)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("starting server manager: %w", err)
	}
	defer manager.Stop()
	log.Info().Dur("poll_interval", cfg.Server.PollInterval).Msg("Server manager started")

	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("No JWT secret configured, auth tokens will use an empty secret")
	}
	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)

	router := api.NewRouter(store, manager, authService, log)
	router.StartWebSocketHub(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	return nil
}

// openPlayerCache dials Redis when configured and keeps names in memory otherwise
func openPlayerCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (playercache.Cache, func(), error) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("Player names cached in memory")
		return playercache.NewMemoryCache(), func() {}, nil
	}

	cache, err := playercache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Player names cached in redis")
	return cache, func() { cache.Close() }, nil
}

// openPublisher connects to NATS, starting an in-process server first when
// configured. No URL and no embedded server means events stay local.
func openPublisher(cfg *config.Config, log zerolog.Logger) (collector.Publisher, func(), error) {
	url := cfg.NATS.URL
	shutdown := func() {}

	if cfg.NATS.Embedded {
		ns, err := broker.StartEmbedded("127.0.0.1", cfg.NATS.Port)
		if err != nil {
			return nil, nil, err
		}
		url = ns.ClientURL()
		shutdown = ns.Shutdown
		log.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	if url == "" {
		return nil, shutdown, nil
	}

	pub, err := broker.Connect(url, cfg.NATS.SubjectPrefix, log)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	return pub, func() {
		pub.Close()
		shutdown()
	}, nil
}
