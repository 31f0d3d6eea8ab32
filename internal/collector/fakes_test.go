package collector

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/config"
	"github.com/ernie/trinity-arena/internal/domain"
)

// fakeRcon records commands instead of sending them
type fakeRcon struct {
	mu       sync.Mutex
	commands []string
	fail     bool
}

func (r *fakeRcon) RconSend(address, password, command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("network unreachable")
	}
	r.commands = append(r.commands, command)
	return nil
}

func (r *fakeRcon) sent(command string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.commands {
		if c == command {
			return true
		}
	}
	return false
}

func (r *fakeRcon) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.commands {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (r *fakeRcon) reset() {
	r.mu.Lock()
	r.commands = nil
	r.mu.Unlock()
}

// queuedScheduler holds delayed work until the test flushes it
type queuedScheduler struct {
	mu    sync.Mutex
	tasks []*queuedTask
}

type queuedTask struct {
	f    func()
	done bool
}

func (s *queuedScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &queuedTask{f: f}
	s.tasks = append(s.tasks, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		stopped := !t.done
		t.done = true
		return stopped
	}
}

func (s *queuedScheduler) flush() {
	for {
		s.mu.Lock()
		var next *queuedTask
		for _, t := range s.tasks {
			if !t.done {
				next = t
				break
			}
		}
		if next != nil {
			next.done = true
		}
		s.mu.Unlock()
		if next == nil {
			return
		}
		next.f()
	}
}

// blockingPublisher holds every Publish until release is closed
type blockingPublisher struct {
	release chan struct{}
	got     chan domain.Event
}

func (p *blockingPublisher) Publish(e domain.Event) error {
	<-p.release
	p.got <- e
	return nil
}

type testServer struct {
	t       *testing.T
	manager *ServerManager
	state   *serverState
	rcon    *fakeRcon
	sched   *queuedScheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{Arena: config.DefaultArena()}
	ts := &testServer{t: t, rcon: &fakeRcon{}, sched: &queuedScheduler{}}

	ts.manager = NewServerManager(cfg, nil, nil, nil, zerolog.New(io.Discard))
	ts.manager.rcon = ts.rcon
	ts.manager.sched = ts.sched

	state, err := ts.manager.addServer(
		domain.Server{ID: 1, Name: "ca", Address: "127.0.0.1:27960"},
		config.Q3Server{Address: "127.0.0.1:27960", RconPassword: "secret", Admins: map[string]int{"A": 5}},
	)
	if err != nil {
		t.Fatalf("addServer: %v", err)
	}
	ts.state = state
	return ts
}

// feed runs log lines through the manager as if they were tailed
func (ts *testServer) feed(lines ...string) {
	ts.t.Helper()
	for _, line := range lines {
		event, err := ParseLine(line)
		if err != nil {
			ts.t.Fatalf("ParseLine(%q): %v", line, err)
		}
		ts.manager.handleLogEvent(context.Background(), ts.state, *event, false)
	}
}

func (ts *testServer) team(cn int) domain.Team {
	ts.state.mu.RLock()
	defer ts.state.mu.RUnlock()
	if c, ok := ts.state.clients[cn]; ok {
		return c.team
	}
	return domain.TeamFree
}

func (ts *testServer) drainEvents() []string {
	var types []string
	for {
		select {
		case e := <-ts.manager.Events():
			types = append(types, e.Type)
		default:
			return types
		}
	}
}
