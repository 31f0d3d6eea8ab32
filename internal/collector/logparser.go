package collector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ernie/trinity-arena/internal/domain"
)

// LogEvent represents a parsed event from the log
type LogEvent struct {
	Timestamp time.Time
	Type      string
	Data      interface{}
}

// Event types
const (
	EventTypeInitGame         = "init_game"
	EventTypeWarmup           = "warmup"
	EventTypeWarmupEnd        = "warmup_end"
	EventTypeMatchState       = "match_state"
	EventTypeClientConnect    = "client_connect"
	EventTypeClientUserinfo   = "client_userinfo"
	EventTypeClientBegin      = "client_begin"
	EventTypeClientDisconnect = "client_disconnect"
	EventTypeTeamChange       = "team_change"
	EventTypeSay              = "say"
	EventTypeGameCountdown    = "game_countdown"
	EventTypeRoundCountdown   = "round_countdown"
	EventTypeRoundEnd         = "round_end"
	EventTypeExit             = "exit"
	EventTypeShutdown         = "shutdown"
)

// Event data structures
type InitGameData struct {
	MapName    string
	Factory    string
	GameType   int
	RoundLimit int
	Settings   map[string]string
}

type MatchStateData struct {
	State string // "warmup", "countdown", "active", "intermission"
}

type ClientConnectData struct {
	ClientID int
}

type ClientUserinfoData struct {
	ClientID int
	Name     string
	Team     int
	IsBot    bool
	GUID     string
	Userinfo map[string]string
}

type ClientDisconnectData struct {
	ClientID int
}

type TeamChangeData struct {
	ClientID int
	OldTeam  int
	NewTeam  int
	Name     string
}

type SayData struct {
	ClientID int
	Name     string
	Message  string
}

type RoundCountdownData struct {
	Round int
}

type RoundEndData struct {
	Winner    domain.Team // TeamFree on a draw
	RedScore  *int
	BlueScore *int
}

type ExitEventData struct {
	Reason    string
	RedScore  *int // nil when the line carries no team scores
	BlueScore *int
}

// Regular expressions for parsing log lines
var (
	// Matches ISO 8601 timestamp at start of line: 2026-01-12T10:58:23 or 2026-01-12T10:58:23.456789Z
	timestampRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?)\s+`)

	// Event patterns (after timestamp is stripped)
	initGameRegex         = regexp.MustCompile(`^InitGame: (.+)$`)
	warmupRegex           = regexp.MustCompile(`^Warmup:(?: \d+)?$`)
	warmupEndRegex        = regexp.MustCompile(`^WarmupEnd:$`)
	matchStateRegex       = regexp.MustCompile(`^MatchState: (\w+)(?: \d+)?$`)
	clientConnectRegex    = regexp.MustCompile(`^ClientConnect: (\d+)$`)
	clientUserinfoRegex   = regexp.MustCompile(`^ClientUserinfoChanged: (\d+) (.+)$`)
	clientBeginRegex      = regexp.MustCompile(`^ClientBegin: (\d+)$`)
	clientDisconnectRegex = regexp.MustCompile(`^ClientDisconnect: (\d+)(?: .*)?$`)
	teamChangeRegex       = regexp.MustCompile(`^TeamChange: (\d+) (\d+) (\d+): (.*)$`)
	sayRegex              = regexp.MustCompile(`^Say: (\d+) "(.+)": (.+)$`)
	gameCountdownRegex    = regexp.MustCompile(`^GameCountdown:$`)
	roundCountdownRegex   = regexp.MustCompile(`^RoundCountdown: (\d+)$`)
	roundEndRegex         = regexp.MustCompile(`^RoundEnd: (RED|BLUE|DRAW)(?: (.*))?$`)
	exitRegex             = regexp.MustCompile(`^Exit: (.+)$`)
	shutdownRegex         = regexp.MustCompile(`^ShutdownGame:(.*)$`)
)

// LogTailer watches a log file and parses events
type LogTailer struct {
	path     string
	file     *os.File
	position int64
	Events   chan LogEvent
	Errors   chan error
	done     chan struct{}
}

// NewLogTailer creates a new log tailer
func NewLogTailer(path string) *LogTailer {
	return &LogTailer{
		path:   path,
		Events: make(chan LogEvent, 100),
		Errors: make(chan error, 10),
		done:   make(chan struct{}),
	}
}

func (t *LogTailer) open() error {
	if t.file != nil {
		return nil
	}
	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	t.file = file
	return nil
}

// Replay reads the file from the beginning and calls handler for each event,
// synchronously. The tailer continues from the end of the replayed content.
func (t *LogTailer) Replay(handler func(LogEvent)) error {
	if err := t.open(); err != nil {
		return err
	}
	if _, err := t.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to start: %w", err)
	}

	reader := bufio.NewReader(t.file)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading line: %w", err)
		}
		consumed += int64(len(line))

		if event, err := ParseLine(strings.TrimSpace(line)); err == nil {
			handler(*event)
		}
	}

	// a trailing partial line is read again by the tail loop
	t.position = consumed
	return nil
}

// Start begins tailing the log file. Without a prior Replay it starts at the end.
func (t *LogTailer) Start() error {
	if err := t.open(); err != nil {
		return err
	}

	if t.position == 0 {
		pos, err := t.file.Seek(0, io.SeekEnd)
		if err != nil {
			t.file.Close()
			return fmt.Errorf("seeking to end: %w", err)
		}
		t.position = pos
	}

	go t.tailLoop()
	return nil
}

// Stop stops the tailer
func (t *LogTailer) Stop() {
	close(t.done)
	if t.file != nil {
		t.file.Close()
	}
}

// tailLoop continuously reads new content from the log
func (t *LogTailer) tailLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if err := t.readNewContent(); err != nil {
				select {
				case t.Errors <- err:
				default:
				}
			}
		}
	}
}

// readNewContent reads complete lines written since the last read
func (t *LogTailer) readNewContent() error {
	stat, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	// copytruncate rotation
	if stat.Size() < t.position {
		t.position = 0
	}
	if stat.Size() == t.position {
		return nil
	}
	if _, err := t.file.Seek(t.position, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to %d: %w", t.position, err)
	}

	reader := bufio.NewReader(t.file)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading line: %w", err)
		}
		t.position += int64(len(line))

		event, err := ParseLine(strings.TrimSpace(line))
		if err != nil {
			continue
		}
		select {
		case t.Events <- *event:
		case <-t.done:
			return nil
		}
	}
	return nil
}

// ParseLine parses a single log line into an event
func ParseLine(line string) (*LogEvent, error) {
	var timestamp time.Time
	content := line

	if match := timestampRegex.FindStringSubmatch(line); match != nil {
		ts, err := time.Parse(time.RFC3339Nano, match[1])
		if err != nil {
			ts, err = time.ParseInLocation("2006-01-02T15:04:05", match[1], time.Local)
		}
		if err == nil {
			timestamp = ts
			content = line[len(match[0]):]
		}
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	event := &LogEvent{Timestamp: timestamp}

	if match := initGameRegex.FindStringSubmatch(content); match != nil {
		settings := parseUserinfo(match[1])
		gameType, _ := strconv.Atoi(settings["g_gametype"])
		roundLimit, _ := strconv.Atoi(settings["roundlimit"])
		event.Type = EventTypeInitGame
		event.Data = InitGameData{
			MapName:    settings["mapname"],
			Factory:    settings["g_factory"],
			GameType:   gameType,
			RoundLimit: roundLimit,
			Settings:   settings,
		}
		return event, nil
	}

	if warmupRegex.MatchString(content) {
		event.Type = EventTypeWarmup
		return event, nil
	}

	if warmupEndRegex.MatchString(content) {
		event.Type = EventTypeWarmupEnd
		return event, nil
	}

	if match := matchStateRegex.FindStringSubmatch(content); match != nil {
		event.Type = EventTypeMatchState
		event.Data = MatchStateData{State: match[1]}
		return event, nil
	}

	if match := clientConnectRegex.FindStringSubmatch(content); match != nil {
		clientID, _ := strconv.Atoi(match[1])
		event.Type = EventTypeClientConnect
		event.Data = ClientConnectData{ClientID: clientID}
		return event, nil
	}

	if match := clientUserinfoRegex.FindStringSubmatch(content); match != nil {
		clientID, _ := strconv.Atoi(match[1])
		userinfo := parseUserinfo(match[2])
		team, _ := strconv.Atoi(userinfo["t"])

		// bots carry a skill field and no GUID
		_, isBot := userinfo["skill"]

		event.Type = EventTypeClientUserinfo
		event.Data = ClientUserinfoData{
			ClientID: clientID,
			Name:     userinfo["n"],
			Team:     team,
			IsBot:    isBot,
			GUID:     userinfo["g"],
			Userinfo: userinfo,
		}
		return event, nil
	}

	if match := clientBeginRegex.FindStringSubmatch(content); match != nil {
		clientID, _ := strconv.Atoi(match[1])
		event.Type = EventTypeClientBegin
		event.Data = ClientConnectData{ClientID: clientID}
		return event, nil
	}

	if match := clientDisconnectRegex.FindStringSubmatch(content); match != nil {
		clientID, _ := strconv.Atoi(match[1])
		event.Type = EventTypeClientDisconnect
		event.Data = ClientDisconnectData{ClientID: clientID}
		return event, nil
	}

	if match := teamChangeRegex.FindStringSubmatch(content); match != nil {
		clientID, _ := strconv.Atoi(match[1])
		oldTeam, _ := strconv.Atoi(match[2])
		newTeam, _ := strconv.Atoi(match[3])
		event.Type = EventTypeTeamChange
		event.Data = TeamChangeData{
			ClientID: clientID,
			OldTeam:  oldTeam,
			NewTeam:  newTeam,
			Name:     match[4],
		}
		return event, nil
	}

	if match := sayRegex.FindStringSubmatch(content); match != nil {
		clientID, _ := strconv.Atoi(match[1])
		event.Type = EventTypeSay
		event.Data = SayData{
			ClientID: clientID,
			Name:     match[2],
			Message:  match[3],
		}
		return event, nil
	}

	if gameCountdownRegex.MatchString(content) {
		event.Type = EventTypeGameCountdown
		return event, nil
	}

	if match := roundCountdownRegex.FindStringSubmatch(content); match != nil {
		round, _ := strconv.Atoi(match[1])
		event.Type = EventTypeRoundCountdown
		event.Data = RoundCountdownData{Round: round}
		return event, nil
	}

	if match := roundEndRegex.FindStringSubmatch(content); match != nil {
		winner := domain.TeamFree
		switch match[1] {
		case "RED":
			winner = domain.TeamRed
		case "BLUE":
			winner = domain.TeamBlue
		}
		red, blue := parseTeamScores(match[2])
		event.Type = EventTypeRoundEnd
		event.Data = RoundEndData{Winner: winner, RedScore: red, BlueScore: blue}
		return event, nil
	}

	if match := exitRegex.FindStringSubmatch(content); match != nil {
		// Exit: <reason> [\g_redScore\<red>\g_blueScore\<blue>]
		reason := match[1]
		var red, blue *int
		if idx := strings.Index(reason, "\\"); idx != -1 {
			red, blue = parseTeamScores(reason[idx:])
			reason = strings.TrimSpace(reason[:idx])
		}
		event.Type = EventTypeExit
		event.Data = ExitEventData{Reason: reason, RedScore: red, BlueScore: blue}
		return event, nil
	}

	if shutdownRegex.MatchString(content) {
		event.Type = EventTypeShutdown
		return event, nil
	}

	return nil, fmt.Errorf("unknown event: %s", content)
}

// parseTeamScores reads g_redScore and g_blueScore from a \key\value list
func parseTeamScores(kv string) (red, blue *int) {
	pairs := parseUserinfo(kv)
	if v, err := strconv.Atoi(pairs["g_redScore"]); err == nil {
		red = &v
	}
	if v, err := strconv.Atoi(pairs["g_blueScore"]); err == nil {
		blue = &v
	}
	return red, blue
}

// parseUserinfo parses backslash-separated userinfo string
// Format is \key\value\key\value (starts with backslash)
func parseUserinfo(info string) map[string]string {
	result := make(map[string]string)
	parts := strings.Split(strings.TrimSpace(info), "\\")

	start := 0
	if len(parts) > 0 && parts[0] == "" {
		start = 1
	}

	for i := start; i+1 < len(parts); i += 2 {
		result[parts[i]] = parts[i+1]
	}

	return result
}

// isAbortReason reports whether an Exit reason means the match was called off
func isAbortReason(reason string) bool {
	return strings.Contains(strings.ToLower(reason), "abort")
}
