// Package plugin is the hook and chat-command dispatcher that game event
// sources fire into and arena components register with.
package plugin

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ernie/trinity-arena/internal/domain"
)

// Result tells the dispatcher how to continue after a handler ran
type Result int

const (
	// Continue lets later handlers and the game action proceed
	Continue Result = iota
	// Stop skips later handlers but lets the game action proceed
	Stop
	// StopAll skips later handlers and rejects the game action
	StopAll
	// Usage reports a malformed command; the caller is told the usage line
	Usage
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case StopAll:
		return "stop_all"
	case Usage:
		return "usage"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

type (
	TeamSwitchHandler func(p domain.Player, oldTeam, newTeam domain.Team) Result
	PlayerHandler     func(p domain.Player)
	RoundHandler      func(round int)
	RoundEndHandler   func(winner domain.Team)
	GameEndHandler    func(result domain.GameResult)
	MapChangeHandler  func(mapName, factory string)
	CommandHandler    func(p domain.Player, args []string) Result
)

// PermissionFunc returns the permission level of a player
type PermissionFunc func(id domain.PlayerID) int

// ReplyFunc delivers a private message to a player
type ReplyFunc func(p domain.Player, text string)

// Command is a chat command such as !duel
type Command struct {
	Names      []string
	Permission int
	Usage      string
	Handler    CommandHandler
}

// Dispatcher fans game events out to registered handlers in registration order
type Dispatcher struct {
	prefix      string
	permissions PermissionFunc
	reply       ReplyFunc

	mu             sync.RWMutex
	teamSwitch     []TeamSwitchHandler
	disconnect     []PlayerHandler
	loaded         []PlayerHandler
	gameCountdown  []func()
	roundCountdown []RoundHandler
	roundEnd       []RoundEndHandler
	gameEnd        []GameEndHandler
	mapChange      []MapChangeHandler
	commands       map[string]*Command
}

// NewDispatcher creates a dispatcher. Nil permissions treat everyone as level 0,
// nil reply drops usage and permission messages.
func NewDispatcher(permissions PermissionFunc, reply ReplyFunc) *Dispatcher {
	if permissions == nil {
		permissions = func(domain.PlayerID) int { return 0 }
	}
	if reply == nil {
		reply = func(domain.Player, string) {}
	}
	return &Dispatcher{
		prefix:      "!",
		permissions: permissions,
		reply:       reply,
		commands:    make(map[string]*Command),
	}
}

func (d *Dispatcher) OnTeamSwitch(h TeamSwitchHandler) {
	d.mu.Lock()
	d.teamSwitch = append(d.teamSwitch, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnDisconnect(h PlayerHandler) {
	d.mu.Lock()
	d.disconnect = append(d.disconnect, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnPlayerLoaded(h PlayerHandler) {
	d.mu.Lock()
	d.loaded = append(d.loaded, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnGameCountdown(h func()) {
	d.mu.Lock()
	d.gameCountdown = append(d.gameCountdown, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnRoundCountdown(h RoundHandler) {
	d.mu.Lock()
	d.roundCountdown = append(d.roundCountdown, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnRoundEnd(h RoundEndHandler) {
	d.mu.Lock()
	d.roundEnd = append(d.roundEnd, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnGameEnd(h GameEndHandler) {
	d.mu.Lock()
	d.gameEnd = append(d.gameEnd, h)
	d.mu.Unlock()
}

func (d *Dispatcher) OnMapChange(h MapChangeHandler) {
	d.mu.Lock()
	d.mapChange = append(d.mapChange, h)
	d.mu.Unlock()
}

// AddCommand registers a chat command under all of its names
func (d *Dispatcher) AddCommand(c Command) error {
	if len(c.Names) == 0 || c.Handler == nil {
		return fmt.Errorf("command needs a name and a handler")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range c.Names {
		if _, exists := d.commands[strings.ToLower(name)]; exists {
			return fmt.Errorf("command %q already registered", name)
		}
	}
	cmd := c
	for _, name := range c.Names {
		d.commands[strings.ToLower(name)] = &cmd
	}
	return nil
}

// FireTeamSwitch runs team switch handlers until one stops processing.
// The returned result is StopAll when the switch must be rejected.
func (d *Dispatcher) FireTeamSwitch(p domain.Player, oldTeam, newTeam domain.Team) Result {
	d.mu.RLock()
	handlers := d.teamSwitch
	d.mu.RUnlock()

	for _, h := range handlers {
		if r := h(p, oldTeam, newTeam); r == Stop || r == StopAll {
			return r
		}
	}
	return Continue
}

func (d *Dispatcher) FireDisconnect(p domain.Player) {
	d.mu.RLock()
	handlers := d.disconnect
	d.mu.RUnlock()
	for _, h := range handlers {
		h(p)
	}
}

func (d *Dispatcher) FirePlayerLoaded(p domain.Player) {
	d.mu.RLock()
	handlers := d.loaded
	d.mu.RUnlock()
	for _, h := range handlers {
		h(p)
	}
}

func (d *Dispatcher) FireGameCountdown() {
	d.mu.RLock()
	handlers := d.gameCountdown
	d.mu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

func (d *Dispatcher) FireRoundCountdown(round int) {
	d.mu.RLock()
	handlers := d.roundCountdown
	d.mu.RUnlock()
	for _, h := range handlers {
		h(round)
	}
}

func (d *Dispatcher) FireRoundEnd(winner domain.Team) {
	d.mu.RLock()
	handlers := d.roundEnd
	d.mu.RUnlock()
	for _, h := range handlers {
		h(winner)
	}
}

func (d *Dispatcher) FireGameEnd(result domain.GameResult) {
	d.mu.RLock()
	handlers := d.gameEnd
	d.mu.RUnlock()
	for _, h := range handlers {
		h(result)
	}
}

func (d *Dispatcher) FireMapChange(mapName, factory string) {
	d.mu.RLock()
	handlers := d.mapChange
	d.mu.RUnlock()
	for _, h := range handlers {
		h(mapName, factory)
	}
}

// HandleChat runs the command in a chat line, if any. handled is false when
// the line is not a registered command.
func (d *Dispatcher) HandleChat(p domain.Player, message string) (handled bool, result Result) {
	message = strings.TrimSpace(message)
	if !strings.HasPrefix(message, d.prefix) {
		return false, Continue
	}

	fields := strings.Fields(strings.TrimPrefix(message, d.prefix))
	if len(fields) == 0 {
		return false, Continue
	}
	name := strings.ToLower(fields[0])

	d.mu.RLock()
	cmd, ok := d.commands[name]
	d.mu.RUnlock()
	if !ok {
		return false, Continue
	}

	if d.permissions(p.ID) < cmd.Permission {
		d.reply(p, "^1You do not have permission to use that command.")
		return true, StopAll
	}

	result = cmd.Handler(p, fields[1:])
	if result == Usage {
		usage := "^7Usage: ^6" + d.prefix + name
		if cmd.Usage != "" {
			usage += " " + cmd.Usage
		}
		d.reply(p, usage)
	}
	return true, result
}
