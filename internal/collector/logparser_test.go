package collector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ernie/trinity-arena/internal/domain"
)

func TestParseLineArenaEvents(t *testing.T) {
	tests := []struct {
		line  string
		typ   string
		check func(t *testing.T, data interface{})
	}{
		{
			line: `2026-03-01T20:15:00Z InitGame: \mapname\campgrounds\g_gametype\4\roundlimit\10\g_factory\ca`,
			typ:  EventTypeInitGame,
			check: func(t *testing.T, data interface{}) {
				d := data.(InitGameData)
				if d.MapName != "campgrounds" || d.GameType != 4 || d.RoundLimit != 10 || d.Factory != "ca" {
					t.Errorf("unexpected init game %+v", d)
				}
			},
		},
		{
			line: "MatchState: countdown",
			typ:  EventTypeMatchState,
			check: func(t *testing.T, data interface{}) {
				if s := data.(MatchStateData).State; s != "countdown" {
					t.Errorf("unexpected state %q", s)
				}
			},
		},
		{line: "GameCountdown:", typ: EventTypeGameCountdown},
		{
			line: "RoundCountdown: 4",
			typ:  EventTypeRoundCountdown,
			check: func(t *testing.T, data interface{}) {
				if r := data.(RoundCountdownData).Round; r != 4 {
					t.Errorf("unexpected round %d", r)
				}
			},
		},
		{
			line: `RoundEnd: BLUE \g_redScore\2\g_blueScore\5`,
			typ:  EventTypeRoundEnd,
			check: func(t *testing.T, data interface{}) {
				d := data.(RoundEndData)
				if d.Winner != domain.TeamBlue || d.RedScore == nil || *d.RedScore != 2 || d.BlueScore == nil || *d.BlueScore != 5 {
					t.Errorf("unexpected round end %+v", d)
				}
			},
		},
		{
			line: "RoundEnd: DRAW",
			typ:  EventTypeRoundEnd,
			check: func(t *testing.T, data interface{}) {
				d := data.(RoundEndData)
				if d.Winner != domain.TeamFree || d.RedScore != nil {
					t.Errorf("unexpected draw %+v", d)
				}
			},
		},
		{
			line: "TeamChange: 3 3 1: ^1Alpha",
			typ:  EventTypeTeamChange,
			check: func(t *testing.T, data interface{}) {
				d := data.(TeamChangeData)
				if d.ClientID != 3 || d.OldTeam != 3 || d.NewTeam != 1 || d.Name != "^1Alpha" {
					t.Errorf("unexpected team change %+v", d)
				}
			},
		},
		{
			line: `Say: 2 "Bravo": !duelarena force`,
			typ:  EventTypeSay,
			check: func(t *testing.T, data interface{}) {
				d := data.(SayData)
				if d.ClientID != 2 || d.Name != "Bravo" || d.Message != "!duelarena force" {
					t.Errorf("unexpected say %+v", d)
				}
			},
		},
		{
			line: `ClientUserinfoChanged: 5 n\Charlie\t\3\g\76561198000000005`,
			typ:  EventTypeClientUserinfo,
			check: func(t *testing.T, data interface{}) {
				d := data.(ClientUserinfoData)
				if d.Name != "Charlie" || d.Team != 3 || d.GUID != "76561198000000005" || d.IsBot {
					t.Errorf("unexpected userinfo %+v", d)
				}
			},
		},
		{
			line: `ClientUserinfoChanged: 6 n\Crash\t\0\skill\3`,
			typ:  EventTypeClientUserinfo,
			check: func(t *testing.T, data interface{}) {
				if d := data.(ClientUserinfoData); !d.IsBot {
					t.Errorf("expected bot, got %+v", d)
				}
			},
		},
		{line: "ClientBegin: 5", typ: EventTypeClientBegin},
		{
			line: "ClientDisconnect: 5 76561198000000005",
			typ:  EventTypeClientDisconnect,
			check: func(t *testing.T, data interface{}) {
				if id := data.(ClientDisconnectData).ClientID; id != 5 {
					t.Errorf("unexpected client %d", id)
				}
			},
		},
		{
			line: `Exit: Roundlimit hit. \g_redScore\10\g_blueScore\7`,
			typ:  EventTypeExit,
			check: func(t *testing.T, data interface{}) {
				d := data.(ExitEventData)
				if d.Reason != "Roundlimit hit." || *d.RedScore != 10 || *d.BlueScore != 7 {
					t.Errorf("unexpected exit %+v", d)
				}
			},
		},
		{
			line: "Exit: Match aborted.",
			typ:  EventTypeExit,
			check: func(t *testing.T, data interface{}) {
				d := data.(ExitEventData)
				if d.RedScore != nil || !isAbortReason(d.Reason) {
					t.Errorf("unexpected exit %+v", d)
				}
			},
		},
		{line: "ShutdownGame:", typ: EventTypeShutdown},
	}

	for _, tt := range tests {
		event, err := ParseLine(tt.line)
		if err != nil {
			t.Errorf("ParseLine(%q): %v", tt.line, err)
			continue
		}
		if event.Type != tt.typ {
			t.Errorf("ParseLine(%q) type = %s, want %s", tt.line, event.Type, tt.typ)
			continue
		}
		if tt.check != nil {
			tt.check(t, event.Data)
		}
	}
}

func TestParseLineTimestamp(t *testing.T) {
	event, err := ParseLine("2026-03-01T20:15:00.250Z GameCountdown:")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	want := time.Date(2026, 3, 1, 20, 15, 0, 250_000_000, time.UTC)
	if !event.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", event.Timestamp, want)
	}
}

func TestParseLineUnknown(t *testing.T) {
	if _, err := ParseLine("Kill: 1 2 3: a killed b by MOD_RAILGUN"); err == nil {
		t.Error("expected unknown line to fail")
	}
}

func TestTailerReplayThenFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qconsole.log")
	if err := os.WriteFile(path, []byte("ClientConnect: 1\nClientBegin: 1\nRoundCount"), 0o644); err != nil {
		t.Fatal(err)
	}

	tailer := NewLogTailer(path)
	var replayed []string
	if err := tailer.Replay(func(e LogEvent) { replayed = append(replayed, e.Type) }); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != 2 || replayed[0] != EventTypeClientConnect || replayed[1] != EventTypeClientBegin {
		t.Fatalf("unexpected replay %v", replayed)
	}

	if err := tailer.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tailer.Stop()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	// completes the partial line left by the replay
	if _, err := f.WriteString("down: 2\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	select {
	case e := <-tailer.Events:
		if e.Type != EventTypeRoundCountdown || e.Data.(RoundCountdownData).Round != 2 {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for tailed event")
	}
}
