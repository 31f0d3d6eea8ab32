package plugin

import (
	"testing"

	"github.com/ernie/trinity-arena/internal/domain"
)

func TestFireTeamSwitchStopsAtFirstStop(t *testing.T) {
	d := NewDispatcher(nil, nil)
	var calls []string
	d.OnTeamSwitch(func(p domain.Player, oldTeam, newTeam domain.Team) Result {
		calls = append(calls, "first")
		return StopAll
	})
	d.OnTeamSwitch(func(p domain.Player, oldTeam, newTeam domain.Team) Result {
		calls = append(calls, "second")
		return Continue
	})

	got := d.FireTeamSwitch(domain.Player{ID: "a"}, domain.TeamSpectator, domain.TeamRed)
	if got != StopAll {
		t.Fatalf("expected StopAll, got %v", got)
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Errorf("unexpected calls %v", calls)
	}
}

func TestFireTeamSwitchContinue(t *testing.T) {
	d := NewDispatcher(nil, nil)
	count := 0
	for i := 0; i < 3; i++ {
		d.OnTeamSwitch(func(domain.Player, domain.Team, domain.Team) Result {
			count++
			return Continue
		})
	}
	if got := d.FireTeamSwitch(domain.Player{}, domain.TeamRed, domain.TeamBlue); got != Continue {
		t.Fatalf("expected Continue, got %v", got)
	}
	if count != 3 {
		t.Errorf("expected 3 handlers to run, got %d", count)
	}
}

func TestHandleChatDispatchesArgs(t *testing.T) {
	d := NewDispatcher(nil, nil)
	var gotArgs []string
	if err := d.AddCommand(Command{
		Names: []string{"duel", "d"},
		Handler: func(p domain.Player, args []string) Result {
			gotArgs = args
			return Continue
		},
	}); err != nil {
		t.Fatalf("AddCommand: %v", err)
	}

	handled, result := d.HandleChat(domain.Player{ID: "a"}, "!D now please")
	if !handled || result != Continue {
		t.Fatalf("expected handled Continue, got %v %v", handled, result)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "now" {
		t.Errorf("unexpected args %v", gotArgs)
	}

	if handled, _ := d.HandleChat(domain.Player{}, "hello there"); handled {
		t.Error("plain chat must not be handled")
	}
	if handled, _ := d.HandleChat(domain.Player{}, "!unknown"); handled {
		t.Error("unknown command must not be handled")
	}
}

func TestHandleChatPermissionAndUsage(t *testing.T) {
	var replies []string
	perms := map[domain.PlayerID]int{"admin": 5}
	d := NewDispatcher(
		func(id domain.PlayerID) int { return perms[id] },
		func(p domain.Player, text string) { replies = append(replies, text) },
	)
	ran := false
	d.AddCommand(Command{
		Names:      []string{"duelarena"},
		Permission: 5,
		Usage:      "[auto|force]",
		Handler: func(p domain.Player, args []string) Result {
			ran = true
			return Usage
		},
	})

	handled, result := d.HandleChat(domain.Player{ID: "nobody"}, "!duelarena force")
	if !handled || result != StopAll || ran {
		t.Fatalf("expected permission denial, got handled=%v result=%v ran=%v", handled, result, ran)
	}

	handled, result = d.HandleChat(domain.Player{ID: "admin"}, "!duelarena")
	if !handled || result != Usage || !ran {
		t.Fatalf("expected usage result, got handled=%v result=%v ran=%v", handled, result, ran)
	}
	if len(replies) != 2 || replies[1] != "^7Usage: ^6!duelarena [auto|force]" {
		t.Errorf("unexpected replies %q", replies)
	}
}

func TestAddCommandRejectsDuplicates(t *testing.T) {
	d := NewDispatcher(nil, nil)
	noop := func(domain.Player, []string) Result { return Continue }
	if err := d.AddCommand(Command{Names: []string{"join"}, Handler: noop}); err != nil {
		t.Fatalf("AddCommand: %v", err)
	}
	if err := d.AddCommand(Command{Names: []string{"JOIN"}, Handler: noop}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := d.AddCommand(Command{Names: nil, Handler: noop}); err == nil {
		t.Fatal("expected error for nameless command")
	}
}

func TestFireEventsReachHandlers(t *testing.T) {
	d := NewDispatcher(nil, nil)
	var got []string
	d.OnDisconnect(func(p domain.Player) { got = append(got, "disconnect:"+string(p.ID)) })
	d.OnPlayerLoaded(func(p domain.Player) { got = append(got, "loaded:"+string(p.ID)) })
	d.OnGameCountdown(func() { got = append(got, "countdown") })
	d.OnRoundCountdown(func(round int) { got = append(got, "round") })
	d.OnRoundEnd(func(w domain.Team) { got = append(got, "end:"+w.String()) })
	d.OnGameEnd(func(r domain.GameResult) { got = append(got, "game_end") })
	d.OnMapChange(func(m, f string) { got = append(got, "map:"+m) })

	d.FireDisconnect(domain.Player{ID: "a"})
	d.FirePlayerLoaded(domain.Player{ID: "b"})
	d.FireGameCountdown()
	d.FireRoundCountdown(2)
	d.FireRoundEnd(domain.TeamRed)
	d.FireGameEnd(domain.GameResult{})
	d.FireMapChange("campgrounds", "ca")

	want := []string{"disconnect:a", "loaded:b", "countdown", "round", "end:red", "game_end", "map:campgrounds"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
