package collector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/config"
	"github.com/ernie/trinity-arena/internal/domain"
	"github.com/ernie/trinity-arena/internal/duelarena"
	"github.com/ernie/trinity-arena/internal/plugin"
)

var errNoRcon = errors.New("rcon not configured for this server")

// rconSender is the fire-and-forget half of Q3Client
type rconSender interface {
	RconSend(address, password, command string) error
}

// clientState tracks a connected client
type clientState struct {
	clientID  int
	playerID  domain.PlayerID
	name      string
	cleanName string
	team      domain.Team
	teamSeq   uint64 // arrival order on the current team
	ping      int
	isBot     bool
	begun     bool
}

func (c *clientState) player() domain.Player {
	return domain.Player{
		ID:        c.playerID,
		ClientNum: c.clientID,
		Name:      c.name,
		CleanName: c.cleanName,
		Team:      c.team,
		Ping:      c.ping,
		Connected: true,
		IsBot:     c.isBot,
	}
}

// serverState tracks the current state of a driven server. mu guards the
// roster and game; the arena controller has its own lock and is never
// called with mu held.
type serverState struct {
	server domain.Server
	cfg    config.Q3Server

	mu      sync.RWMutex
	status  *domain.ServerStatus
	game    *domain.Game
	clients map[int]*clientState // client ID -> client state
	seq     uint64
	reverts map[int]domain.Team // client ID -> team a revert is putting them back on

	host       *rconHost
	dispatcher *plugin.Dispatcher
	arena      *duelarena.Controller
}

func newServerState(server domain.Server, cfg config.Q3Server) *serverState {
	return &serverState{
		server:  server,
		cfg:     cfg,
		clients: make(map[int]*clientState),
		reverts: make(map[int]domain.Team),
	}
}

// setTeam moves a client, making them the latest arrival on the new team.
// Caller holds mu.
func (s *serverState) setTeam(c *clientState, team domain.Team) {
	if c.team == team && c.teamSeq != 0 {
		return
	}
	s.seq++
	c.team = team
	c.teamSeq = s.seq
}

// clientByPlayer finds a connected client by PlayerID. Caller holds mu.
func (s *serverState) clientByPlayer(id domain.PlayerID) *clientState {
	for _, c := range s.clients {
		if c.playerID == id {
			return c
		}
	}
	return nil
}

// rconHost is the duelarena.Host of one server. Queries read the tracked
// roster; commands go out over rcon and are applied to the roster right away
// so the controller sees its own moves before the log echoes them.
type rconHost struct {
	state *serverState
	rcon  rconSender
	log   zerolog.Logger
}

var _ duelarena.Host = (*rconHost)(nil)

func newRconHost(state *serverState, rcon rconSender, logger zerolog.Logger) *rconHost {
	return &rconHost{state: state, rcon: rcon, log: logger}
}

func (h *rconHost) send(command string) error {
	if h.state.cfg.RconPassword == "" {
		return errNoRcon
	}
	h.log.Debug().Str("command", command).Msg("rcon")
	if err := h.rcon.RconSend(h.state.server.Address, h.state.cfg.RconPassword, command); err != nil {
		return fmt.Errorf("rcon %q: %w", command, err)
	}
	return nil
}

func (h *rconHost) Game() *domain.Game {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()

	if h.state.game == nil {
		return nil
	}
	g := *h.state.game
	return &g
}

func (h *rconHost) Teams() domain.Teams {
	h.state.mu.RLock()
	clients := make([]*clientState, 0, len(h.state.clients))
	for _, c := range h.state.clients {
		if c.playerID != "" {
			clients = append(clients, c)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].teamSeq < clients[j].teamSeq })

	var teams domain.Teams
	for _, c := range clients {
		p := c.player()
		switch c.team {
		case domain.TeamRed:
			teams.Red = append(teams.Red, p)
		case domain.TeamBlue:
			teams.Blue = append(teams.Blue, p)
		case domain.TeamFree:
			teams.Free = append(teams.Free, p)
		default:
			teams.Spectator = append(teams.Spectator, p)
		}
	}
	h.state.mu.RUnlock()
	return teams
}

func (h *rconHost) Player(id domain.PlayerID) (domain.Player, bool) {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()

	if c := h.state.clientByPlayer(id); c != nil {
		return c.player(), true
	}
	return domain.Player{}, false
}

func (h *rconHost) ConnectedCount() int {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()

	n := 0
	for _, c := range h.state.clients {
		if c.playerID != "" {
			n++
		}
	}
	return n
}

func (h *rconHost) Put(id domain.PlayerID, team domain.Team) error {
	h.state.mu.Lock()
	c := h.state.clientByPlayer(id)
	if c == nil {
		h.state.mu.Unlock()
		return fmt.Errorf("player %s is not connected", id)
	}
	cn, from := c.clientID, c.team
	h.state.setTeam(c, team)
	h.state.mu.Unlock()

	if err := h.send(fmt.Sprintf("put %d %s", cn, team.Letter())); err != nil {
		h.state.mu.Lock()
		if cur, ok := h.state.clients[cn]; ok && cur == c {
			h.state.setTeam(c, from)
		}
		h.state.mu.Unlock()
		return err
	}
	return nil
}

func (h *rconHost) AddTeamScore(team domain.Team, delta int) error {
	if !team.OnField() {
		return fmt.Errorf("cannot score team %s", team)
	}
	if err := h.send(fmt.Sprintf("addteamscore %s %d", team, delta)); err != nil {
		return err
	}

	h.state.mu.Lock()
	if g := h.state.game; g != nil {
		if team == domain.TeamRed {
			g.RedScore += delta
		} else {
			g.BlueScore += delta
		}
	}
	h.state.mu.Unlock()
	return nil
}

func (h *rconHost) Msg(text string) error {
	return h.send(fmt.Sprintf("say %s", quote(text)))
}

func (h *rconHost) CenterPrint(text string) error {
	return h.send(fmt.Sprintf("cp %s", quote(text)))
}

func (h *rconHost) Tell(id domain.PlayerID, text string) error {
	h.state.mu.RLock()
	c := h.state.clientByPlayer(id)
	cn := -1
	if c != nil {
		cn = c.clientID
	}
	h.state.mu.RUnlock()

	if cn < 0 {
		return fmt.Errorf("player %s is not connected", id)
	}
	return h.tellClient(cn, text)
}

func (h *rconHost) tellClient(cn int, text string) error {
	return h.send(fmt.Sprintf("tell %d %s", cn, quote(text)))
}

func (h *rconHost) PlaySound(path string) error {
	return h.send(fmt.Sprintf("play %s", path))
}

// revert puts a client back on the team they tried to leave. The log echo of
// the revert is swallowed by the manager.
func (h *rconHost) revert(cn int, team domain.Team) error {
	h.state.mu.Lock()
	c, ok := h.state.clients[cn]
	if !ok {
		h.state.mu.Unlock()
		return nil
	}
	h.state.reverts[cn] = team
	h.state.setTeam(c, team)
	h.state.mu.Unlock()

	return h.send(fmt.Sprintf("put %d %s", cn, team.Letter()))
}

// quote wraps console text in double quotes, which it may not contain itself
func quote(text string) string {
	return `"` + strings.ReplaceAll(text, `"`, "'") + `"`
}
