package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// PlayerID is the persistent account identifier of a player (the userinfo GUID),
// stable across reconnects and map changes. It is not the client slot.
type PlayerID string

// Team is a Quake team number as it appears in logs and userinfo
type Team int

const (
	TeamFree Team = iota
	TeamRed
	TeamBlue
	TeamSpectator
	TeamAny // join target only, never reported by the server
)

var teamNames = [...]string{"free", "red", "blue", "spectator", "any"}

// TeamFromInt converts a log/userinfo team number to a Team
func TeamFromInt(n int) Team {
	if n < int(TeamFree) || n > int(TeamSpectator) {
		return TeamSpectator
	}
	return Team(n)
}

// ParseTeam accepts long names and the single letter forms used by `put`
func ParseTeam(s string) (Team, error) {
	switch strings.ToLower(s) {
	case "free", "f":
		return TeamFree, nil
	case "red", "r":
		return TeamRed, nil
	case "blue", "b":
		return TeamBlue, nil
	case "spectator", "spec", "s":
		return TeamSpectator, nil
	case "any", "a":
		return TeamAny, nil
	}
	return TeamSpectator, fmt.Errorf("unknown team %q", s)
}

func (t Team) String() string {
	if t < TeamFree || int(t) >= len(teamNames) {
		return fmt.Sprintf("team(%d)", int(t))
	}
	return teamNames[t]
}

// Letter returns the argument form understood by the `put` console command
func (t Team) Letter() string {
	switch t {
	case TeamRed:
		return "r"
	case TeamBlue:
		return "b"
	case TeamFree:
		return "f"
	default:
		return "s"
	}
}

// OnField reports whether the team is one of the two playing colours
func (t Team) OnField() bool {
	return t == TeamRed || t == TeamBlue
}

// Opposite returns the other playing colour. Non-field teams map to themselves.
func (t Team) Opposite() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	}
	return t
}

func (t Team) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Team) UnmarshalText(b []byte) error {
	parsed, err := ParseTeam(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Player is a connected client as seen by the arena
type Player struct {
	ID        PlayerID `json:"id"`
	ClientNum int      `json:"client_num"`
	Name      string   `json:"name"`
	CleanName string   `json:"clean_name"`
	Team      Team     `json:"team"`
	Ping      int      `json:"ping"`
	Connected bool     `json:"connected"`
	IsBot     bool     `json:"is_bot,omitempty"`
}

// q3ColorCodeRegex matches Quake 3 color codes like ^1, ^2, etc.
var q3ColorCodeRegex = regexp.MustCompile(`\^[0-9]`)

// CleanQ3Name removes Quake 3 color codes from a player name
func CleanQ3Name(name string) string {
	return q3ColorCodeRegex.ReplaceAllString(name, "")
}

// BotPlayerID builds the synthetic identifier used for bots, which have no GUID
func BotPlayerID(cleanName string) PlayerID {
	return PlayerID("BOT:" + cleanName)
}
