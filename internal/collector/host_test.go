package collector

import (
	"testing"

	"github.com/ernie/trinity-arena/internal/domain"
)

func connect(ts *testServer, cn, name, guid, team string) {
	ts.feed(
		"ClientConnect: "+cn,
		`ClientUserinfoChanged: `+cn+` n\`+name+`\t\`+team+`\g\`+guid,
		"ClientBegin: "+cn,
	)
}

func TestHostRosterOrderedByArrival(t *testing.T) {
	ts := newTestServer(t)
	ts.feed(`InitGame: \mapname\campgrounds\g_gametype\4\roundlimit\10`)
	connect(ts, "0", "Alpha", "A", "3")
	connect(ts, "1", "Bravo", "B", "3")
	connect(ts, "2", "Charlie", "C", "3")
	ts.feed(
		"TeamChange: 1 3 1: Bravo",
		"TeamChange: 0 3 1: Alpha",
	)

	host := ts.state.host
	teams := host.Teams()
	if len(teams.Red) != 2 || teams.Red[0].ID != "B" || teams.Red[1].ID != "A" {
		t.Fatalf("expected red ordered by arrival, got %+v", teams.Red)
	}
	if len(teams.Spectator) != 1 || teams.Spectator[0].ID != "C" {
		t.Errorf("unexpected spectators %+v", teams.Spectator)
	}
	if host.ConnectedCount() != 3 {
		t.Errorf("expected 3 connected, got %d", host.ConnectedCount())
	}

	p, ok := host.Player("C")
	if !ok || p.ClientNum != 2 || !p.Connected || p.Team != domain.TeamSpectator {
		t.Errorf("unexpected player %+v", p)
	}
	if _, ok := host.Player("Z"); ok {
		t.Error("unknown player must not be found")
	}
}

func TestHostCommandsFormatRcon(t *testing.T) {
	ts := newTestServer(t)
	ts.feed(`InitGame: \mapname\campgrounds\g_gametype\4`)
	connect(ts, "4", "Alpha", "A", "3")
	host := ts.state.host

	if err := host.Put("A", domain.TeamBlue); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ts.team(4) != domain.TeamBlue {
		t.Error("Put must apply to the roster before the log echo")
	}
	if err := host.AddTeamScore(domain.TeamRed, -3); err != nil {
		t.Fatalf("AddTeamScore: %v", err)
	}
	if g := host.Game(); g.RedScore != -3 {
		t.Errorf("expected optimistic score, got %d", g.RedScore)
	}
	host.Msg(`say "hi"`)
	host.CenterPrint("DuelArena activated!")
	host.Tell("A", "hello")
	host.PlaySound("sound/vo/vote_passed.ogg")

	for _, want := range []string{
		"put 4 b",
		"addteamscore red -3",
		`say "say 'hi'"`,
		`cp "DuelArena activated!"`,
		`tell 4 "hello"`,
		"play sound/vo/vote_passed.ogg",
	} {
		if !ts.rcon.sent(want) {
			t.Errorf("expected rcon %q, got %v", want, ts.rcon.commands)
		}
	}

	if err := host.Tell("gone", "x"); err == nil {
		t.Error("telling an absent player must fail")
	}
	if err := host.AddTeamScore(domain.TeamSpectator, 1); err == nil {
		t.Error("scoring spectators must fail")
	}
}

func TestHostPutRollsBackOnSendFailure(t *testing.T) {
	ts := newTestServer(t)
	connect(ts, "0", "Alpha", "A", "3")
	ts.rcon.fail = true

	if err := ts.state.host.Put("A", domain.TeamRed); err == nil {
		t.Fatal("expected Put to fail")
	}
	if ts.team(0) != domain.TeamSpectator {
		t.Errorf("failed put must not move the player, got %s", ts.team(0))
	}
}

func TestHostWithoutRconPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.state.cfg.RconPassword = ""
	if err := ts.state.host.Msg("x"); err != errNoRcon {
		t.Errorf("expected errNoRcon, got %v", err)
	}
}

func TestHostGameIsACopy(t *testing.T) {
	ts := newTestServer(t)
	if ts.state.host.Game() != nil {
		t.Fatal("expected no game before InitGame")
	}
	ts.feed(`InitGame: \mapname\campgrounds\g_gametype\4`)
	g := ts.state.host.Game()
	g.RedScore = 99
	if ts.state.host.Game().RedScore != 0 {
		t.Error("mutating the returned game must not change server state")
	}
	ts.feed("ShutdownGame:")
	if ts.state.host.Game() != nil {
		t.Error("expected no game after shutdown")
	}
}
