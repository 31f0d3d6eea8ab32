package duelarena

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/config"
	"github.com/ernie/trinity-arena/internal/domain"
	"github.com/ernie/trinity-arena/internal/plugin"
)

// fakeHost is an in-memory game server. Put applies immediately, the way the
// real server does before its log echoes the change.
type fakeHost struct {
	game   *domain.Game
	roster []domain.Player // arrival order; moved players go to the end

	puts   []string
	scores []string
	msgs   []string
	cps    []string
	tells  map[domain.PlayerID][]string
	sounds []string
}

func newFakeHost(state domain.MatchState) *fakeHost {
	return &fakeHost{
		game:  &domain.Game{Map: "campgrounds", Type: domain.GameTypeCA, State: state, RoundLimit: 10},
		tells: make(map[domain.PlayerID][]string),
	}
}

func (h *fakeHost) add(id, name string, team domain.Team) domain.Player {
	p := domain.Player{ID: domain.PlayerID(id), Name: name, Team: team, Connected: true, Ping: 50}
	h.roster = append(h.roster, p)
	return p
}

func (h *fakeHost) disconnect(id domain.PlayerID) domain.Player {
	for i, p := range h.roster {
		if p.ID == id {
			h.roster = append(h.roster[:i], h.roster[i+1:]...)
			return p
		}
	}
	return domain.Player{}
}

func (h *fakeHost) setTeam(id domain.PlayerID, team domain.Team) {
	for i, p := range h.roster {
		if p.ID == id {
			h.roster = append(h.roster[:i], h.roster[i+1:]...)
			p.Team = team
			h.roster = append(h.roster, p)
			return
		}
	}
}

func (h *fakeHost) setPing(id domain.PlayerID, ping int) {
	for i := range h.roster {
		if h.roster[i].ID == id {
			h.roster[i].Ping = ping
		}
	}
}

func (h *fakeHost) Game() *domain.Game {
	return h.game
}

func (h *fakeHost) Teams() domain.Teams {
	var t domain.Teams
	for _, p := range h.roster {
		switch p.Team {
		case domain.TeamRed:
			t.Red = append(t.Red, p)
		case domain.TeamBlue:
			t.Blue = append(t.Blue, p)
		case domain.TeamSpectator:
			t.Spectator = append(t.Spectator, p)
		default:
			t.Free = append(t.Free, p)
		}
	}
	return t
}

func (h *fakeHost) Player(id domain.PlayerID) (domain.Player, bool) {
	for _, p := range h.roster {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Player{}, false
}

func (h *fakeHost) ConnectedCount() int {
	return len(h.roster)
}

func (h *fakeHost) Put(id domain.PlayerID, team domain.Team) error {
	for i, p := range h.roster {
		if p.ID == id {
			h.roster = append(h.roster[:i], h.roster[i+1:]...)
			p.Team = team
			h.roster = append(h.roster, p)
			h.puts = append(h.puts, fmt.Sprintf("%s:%s", id, team))
			return nil
		}
	}
	return fmt.Errorf("no player %s", id)
}

func (h *fakeHost) AddTeamScore(team domain.Team, delta int) error {
	switch team {
	case domain.TeamRed:
		h.game.RedScore += delta
	case domain.TeamBlue:
		h.game.BlueScore += delta
	}
	h.scores = append(h.scores, fmt.Sprintf("%s%+d", team, delta))
	return nil
}

func (h *fakeHost) Msg(text string) error {
	h.msgs = append(h.msgs, text)
	return nil
}

func (h *fakeHost) CenterPrint(text string) error {
	h.cps = append(h.cps, text)
	return nil
}

func (h *fakeHost) Tell(id domain.PlayerID, text string) error {
	h.tells[id] = append(h.tells[id], text)
	return nil
}

func (h *fakeHost) PlaySound(path string) error {
	h.sounds = append(h.sounds, path)
	return nil
}

func (h *fakeHost) said(text string) bool {
	for _, m := range h.msgs {
		if m == text {
			return true
		}
	}
	return false
}

func (h *fakeHost) team(id domain.PlayerID) domain.Team {
	p, _ := h.Player(id)
	return p.Team
}

// manualScheduler records delayed tasks until the test runs them
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	delay   time.Duration
	f       func()
	stopped bool
	ran     bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{delay: d, f: f}
	s.tasks = append(s.tasks, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.stopped || t.ran {
			return false
		}
		t.stopped = true
		return true
	}
}

// run fires every due task, including tasks scheduled by the ones it runs
func (s *manualScheduler) run() int {
	ran := 0
	for {
		s.mu.Lock()
		var next *manualTask
		for _, t := range s.tasks {
			if !t.stopped && !t.ran {
				next = t
				break
			}
		}
		if next != nil {
			next.ran = true
		}
		s.mu.Unlock()
		if next == nil {
			return ran
		}
		next.f()
		ran++
	}
}

// fireStale runs a task even if it was stopped, like a timer that raced its Stop
func (s *manualScheduler) fireStale() {
	s.mu.Lock()
	tasks := append([]*manualTask(nil), s.tasks...)
	s.mu.Unlock()
	for _, t := range tasks {
		t.f()
	}
}

type recordingNotifier struct {
	events []domain.Event
}

func (n *recordingNotifier) Notify(e domain.Event) {
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []string {
	var out []string
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

func (n *recordingNotifier) has(eventType string) bool {
	for _, e := range n.events {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

type staticNames map[domain.PlayerID]string

func (s staticNames) Name(id domain.PlayerID) (string, bool) {
	n, ok := s[id]
	return n, ok
}

type harness struct {
	host  *fakeHost
	sched *manualScheduler
	notes *recordingNotifier
	arena *Controller
}

func newHarness(t *testing.T, state domain.MatchState) *harness {
	t.Helper()
	h := &harness{
		host:  newFakeHost(state),
		sched: &manualScheduler{},
		notes: &recordingNotifier{},
	}
	h.arena = New(h.host, h.sched, config.DefaultArena(), zerolog.New(io.Discard), Options{
		ServerID: 1,
		Notifier: h.notes,
	})
	return h
}

// join moves a player the way the server does and then fires the switch
// hook. A rejected switch is reverted like the collector reverts it.
func (h *harness) join(id domain.PlayerID, team domain.Team) plugin.Result {
	p, _ := h.host.Player(id)
	old := p.Team
	h.host.setTeam(id, team)
	p.Team = team
	result := h.arena.HandleTeamSwitchAttempt(p, old, team)
	if result == plugin.StopAll {
		h.host.setTeam(id, old)
	}
	return result
}
