package duelarena

import (
	"testing"

	"github.com/ernie/trinity-arena/internal/domain"
)

func ids(values ...string) []domain.PlayerID {
	out := make([]domain.PlayerID, 0, len(values))
	for _, v := range values {
		out = append(out, domain.PlayerID(v))
	}
	return out
}

func equalIDs(a, b []domain.PlayerID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStrategyShouldActivate(t *testing.T) {
	for n := 0; n <= 6; n++ {
		if got, want := Automatic.ShouldActivate(n), n == 3; got != want {
			t.Errorf("Automatic.ShouldActivate(%d) = %v, want %v", n, got, want)
		}
		if got, want := Forced.ShouldActivate(n), n >= 3; got != want {
			t.Errorf("Forced.ShouldActivate(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"auto", Automatic, false},
		{"force", Forced, false},
		{"forced", Forced, false},
		{"sometimes", Automatic, true},
		{"", Automatic, true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if Forced.String() != "force" || Automatic.String() != "auto" {
		t.Errorf("unexpected strategy names %q %q", Forced, Automatic)
	}
}

func TestQueueOrdering(t *testing.T) {
	var q Queue
	q.Enqueue("C")
	q.Enqueue("D")
	if !equalIDs(q.IDs(), ids("D", "C")) {
		t.Fatalf("expected newest at position 0, got %v", q.IDs())
	}
	if q.Enqueue("C") {
		t.Error("enqueueing a queued player must be a no-op")
	}

	// a round loser goes to position 0, a match winner to the last position
	q.Enqueue("loser")
	q.Promote("winner")
	got := q.IDs()
	if got[0] != "loser" || got[len(got)-1] != "winner" {
		t.Fatalf("unexpected queue %v", got)
	}

	next, ok := q.Pop()
	if !ok || next != "winner" {
		t.Fatalf("expected winner popped first, got %q", next)
	}
	if q.Contains("winner") {
		t.Error("popped player must leave the queue")
	}

	q.Promote("D")
	if !equalIDs(q.IDs(), ids("loser", "C", "D")) {
		t.Errorf("promote must move an existing entry, got %v", q.IDs())
	}

	q.Clear()
	if _, ok := q.Pop(); ok {
		t.Error("pop on empty queue must fail")
	}
}

func TestPlayersetIsOrderedAndIdempotent(t *testing.T) {
	var s Playerset
	s.Add("A")
	s.Add("B")
	if s.Add("A") {
		t.Error("re-adding must report false")
	}
	if !s.Remove("A") || s.Remove("A") {
		t.Error("remove must be idempotent")
	}
	s.Add("C")
	s.Retain(func(id domain.PlayerID) bool { return id != "B" })
	if !equalIDs(s.IDs(), ids("C")) {
		t.Errorf("unexpected members %v", s.IDs())
	}
}

func TestLedgerStandingsShareTiedPlaces(t *testing.T) {
	l := NewLedger()
	l.Set("A", 3)
	l.Set("B", 5)
	l.Set("C", 3)
	l.Seed("D")
	l.Seed("B")
	l.Inc("D")

	standings := l.Standings()
	want := []domain.Standing{
		{Place: 1, PlayerID: "B", Wins: 5},
		{Place: 2, PlayerID: "A", Wins: 3},
		{Place: 2, PlayerID: "C", Wins: 3},
		{Place: 3, PlayerID: "D", Wins: 1},
	}
	if len(standings) != len(want) {
		t.Fatalf("got %d standings, want %d", len(standings), len(want))
	}
	for i := range want {
		if standings[i] != want[i] {
			t.Errorf("standing %d = %+v, want %+v", i, standings[i], want[i])
		}
	}
	if l.Max() != 5 {
		t.Errorf("expected top tally 5, got %d", l.Max())
	}

	l.Reset()
	if l.Len() != 0 || len(l.Standings()) != 0 {
		t.Error("reset must empty the ledger")
	}
}

func TestPendingMoves(t *testing.T) {
	var p pendingMoves
	p.expect(domain.TeamBlue, "C")
	p.expect(domain.TeamSpectator, "B")
	p.expect(domain.TeamSpectator, "E")

	if p.claim("C", domain.TeamRed) {
		t.Error("claim must match the expected slot")
	}
	if !p.claim("C", domain.TeamBlue) {
		t.Error("expected claim of C onto blue")
	}
	if p.claim("C", domain.TeamBlue) {
		t.Error("a move can only be claimed once")
	}

	// the blue slot has one owner, a later move onto it replaces the earlier
	p.expect(domain.TeamBlue, "X")
	p.expect(domain.TeamBlue, "Y")
	if p.claim("X", domain.TeamBlue) {
		t.Error("superseded blue move must be gone")
	}

	// one move per player
	p.expect(domain.TeamRed, "B")
	if p.claim("B", domain.TeamSpectator) {
		t.Error("a player's newer move replaces the older one")
	}
	if p.len() != 3 {
		t.Errorf("expected 3 pending moves, got %d", p.len())
	}

	p.clear()
	if p.len() != 0 {
		t.Error("clear must drop all moves")
	}
}
