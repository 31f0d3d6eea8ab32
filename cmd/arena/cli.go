package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/ernie/trinity-arena/internal/config"
	"github.com/ernie/trinity-arena/internal/domain"
	"github.com/ernie/trinity-arena/internal/storage"
)

// cliEnv is what every client subcommand needs to reach the service or database
type cliEnv struct {
	baseURL string
	dbPath  string
	user    string
}

// addCLIFlags registers the global options on a subcommand's flag set
func addCLIFlags(fs *flag.FlagSet) (configPath, url, user *string) {
	configPath = fs.String("config", defaultConfigPath, "path to configuration file")
	url = fs.String("url", "", "base URL of the arena service")
	user = fs.String("user", "", "admin username for commands that change state")
	return
}

// resolveCLIEnv loads the config if it can; commands still work against
// defaults when it is missing
func resolveCLIEnv(configPath, url, user string) cliEnv {
	env := cliEnv{
		baseURL: "http://localhost:8080",
		dbPath:  "/var/lib/trinity-arena/arena.db",
		user:    user,
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config from %s: %v\n", configPath, err)
	} else {
		env.dbPath = cfg.Database.Path
		env.baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	}
	if url != "" {
		env.baseURL = strings.TrimRight(url, "/")
	}
	return env
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath, url, user := addCLIFlags(fs)
	fs.Parse(args)
	env := resolveCLIEnv(*configPath, *url, *user)

	var statuses []domain.ServerStatus
	if err := env.getJSON("/api/status", &statuses); err != nil {
		fatal(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVER\tMAP\tSTATE\tHUMANS\tBOTS\tSCORE\tSTATUS")
	fmt.Fprintln(w, "--\t------\t---\t-----\t------\t----\t-----\t------")
	for _, s := range statuses {
		score := "-"
		if s.TeamScores != nil {
			score = fmt.Sprintf("%d:%d", s.TeamScores.RedScore, s.TeamScores.BlueScore)
		}
		online := "ONLINE"
		if !s.Online {
			online = "OFFLINE"
		}
		state := s.MatchState
		if state == "" {
			state = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			s.ServerID, s.Name, s.Map, state, s.HumanCount, s.BotCount, score, online)
	}
	w.Flush()
}

func cmdArena(args []string) {
	if len(args) < 1 {
		fatal(fmt.Errorf("arena subcommand required: show, auto, force"))
	}
	subCmd := args[0]

	fs := flag.NewFlagSet("arena "+subCmd, flag.ExitOnError)
	configPath, url, user := addCLIFlags(fs)
	fs.Parse(args[1:])
	env := resolveCLIEnv(*configPath, *url, *user)

	switch subCmd {
	case "show":
		if err := arenaShow(env, fs.Args()); err != nil {
			fatal(err)
		}
	case "auto", "force":
		if fs.NArg() < 1 {
			fatal(fmt.Errorf("usage: arena arena %s <server> --user <admin>", subCmd))
		}
		if err := arenaSetStrategy(env, fs.Arg(0), subCmd); err != nil {
			fatal(err)
		}
	default:
		fatal(fmt.Errorf("unknown arena command: %s (use: show, auto, force)", subCmd))
	}
}

func arenaShow(env cliEnv, args []string) error {
	var ids []int64
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid server id %q", args[0])
		}
		ids = append(ids, id)
	} else {
		var servers []domain.Server
		if err := env.getJSON("/api/servers", &servers); err != nil {
			return err
		}
		for _, s := range servers {
			ids = append(ids, s.ID)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tSTRATEGY\tPLAYERS\tQUEUE\tSTANDINGS")
	fmt.Fprintln(w, "--\t----\t--------\t-------\t-----\t---------")
	for _, id := range ids {
		var state domain.ArenaState
		if err := env.getJSON(fmt.Sprintf("/api/servers/%d/arena", id), &state); err != nil {
			fmt.Fprintf(w, "%d\t-\t-\t-\t-\t%v\n", id, err)
			continue
		}
		mode := "normal"
		switch {
		case state.Active && state.Pending:
			mode = "duel (pairing)"
		case state.Active:
			mode = "duel"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			id, mode, state.Strategy, len(state.Playerset), joinIDs(state.Queue), formatStandings(state.Standings))
	}
	return w.Flush()
}

func arenaSetStrategy(env cliEnv, server, strategy string) error {
	id, err := strconv.ParseInt(server, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid server id %q", server)
	}
	token, err := env.login()
	if err != nil {
		return err
	}

	var state domain.ArenaState
	path := fmt.Sprintf("/api/servers/%d/arena/strategy", id)
	if err := env.postJSON(path, token, map[string]string{"strategy": strategy}, &state); err != nil {
		return err
	}
	fmt.Printf("Server %d arena strategy is now %s (active: %t)\n", id, state.Strategy, state.Active)
	return nil
}

func cmdEvents(args []string) {
	if len(args) > 0 && args[0] == "prune" {
		cmdEventsPrune(args[1:])
		return
	}

	fs := flag.NewFlagSet("events", flag.ExitOnError)
	configPath, url, user := addCLIFlags(fs)
	limit := fs.Int("limit", 20, "number of events to show")
	session := fs.String("session", "", "only show events of one arena session")
	fs.Parse(args)
	env := resolveCLIEnv(*configPath, *url, *user)

	if fs.NArg() < 1 {
		fatal(fmt.Errorf("usage: arena events <server> [--limit N] [--session ID]"))
	}
	path := fmt.Sprintf("/api/servers/%s/arena/events?limit=%d", fs.Arg(0), *limit)
	if *session != "" {
		path += "&session=" + *session
	}

	var events []domain.ArenaEventRecord
	if err := env.getJSON(path, &events); err != nil {
		fatal(err)
	}
	if len(events) == 0 {
		fmt.Println("No arena events recorded")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tEVENT\tSESSION\tPAYLOAD")
	fmt.Fprintln(w, "--\t----\t-----\t-------\t-------")
	for _, e := range events {
		session := e.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Type, session, string(e.Payload))
	}
	w.Flush()
}

func cmdEventsPrune(args []string) {
	fs := flag.NewFlagSet("events prune", flag.ExitOnError)
	configPath, url, user := addCLIFlags(fs)
	olderThan := fs.Duration("older-than", 30*24*time.Hour, "delete events older than this")
	fs.Parse(args)
	env := resolveCLIEnv(*configPath, *url, *user)

	store, err := storage.New(env.dbPath)
	if err != nil {
		fatal(fmt.Errorf("failed to open database: %w", err))
	}
	defer store.Close()

	n, err := store.DeleteArenaEventsBefore(context.Background(), time.Now().Add(-*olderThan))
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Deleted %d arena events older than %s\n", n, *olderThan)
}

func joinIDs(ids []domain.PlayerID) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

func formatStandings(standings []domain.Standing) string {
	if len(standings) == 0 {
		return "-"
	}
	parts := make([]string, len(standings))
	for i, s := range standings {
		name := s.Name
		if name == "" {
			name = string(s.PlayerID)
		}
		parts[i] = fmt.Sprintf("%s=%d", name, s.Wins)
	}
	return strings.Join(parts, " ")
}

// readPassword prompts on the terminal without echo
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// login trades the --user account and a prompted password for a token
func (env cliEnv) login() (string, error) {
	if env.user == "" {
		return "", fmt.Errorf("--user is required for this command")
	}
	password, err := readPassword(fmt.Sprintf("Password for %s: ", env.user))
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": env.user, "password": password}
	if err := env.postJSON("/api/auth/login", "", body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (env cliEnv) getJSON(path string, target interface{}) error {
	resp, err := http.Get(env.baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, target)
}

func (env cliEnv) postJSON(path, token string, body, target interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, env.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, target)
}

func decodeResponse(resp *http.Response, target interface{}) error {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
