package domain

// MatchState is the lifecycle phase of the current game
type MatchState string

const (
	MatchWarmup       MatchState = "warmup"
	MatchCountdown    MatchState = "countdown"
	MatchInProgress   MatchState = "in_progress"
	MatchIntermission MatchState = "intermission"
)

// MatchStateFromLog maps the MatchState log values onto MatchState
func MatchStateFromLog(s string) MatchState {
	switch s {
	case "countdown":
		return MatchCountdown
	case "active", "in_progress":
		return MatchInProgress
	case "intermission":
		return MatchIntermission
	default:
		return MatchWarmup
	}
}

// Game is the live match on a server
type Game struct {
	Map        string     `json:"map"`
	Factory    string     `json:"factory,omitempty"`
	Type       string     `json:"type"` // short gametype name, e.g. "ca"
	State      MatchState `json:"state"`
	RedScore   int        `json:"red_score"`
	BlueScore  int        `json:"blue_score"`
	RoundLimit int        `json:"round_limit"`
}

// TeamScore returns the current score of a playing colour (0 otherwise)
func (g *Game) TeamScore(t Team) int {
	switch t {
	case TeamRed:
		return g.RedScore
	case TeamBlue:
		return g.BlueScore
	}
	return 0
}

// InProgress reports whether rounds are being played
func (g *Game) InProgress() bool {
	return g != nil && g.State == MatchInProgress
}

// Warmup reports whether the game is in warmup
func (g *Game) Warmup() bool {
	return g != nil && g.State == MatchWarmup
}

// GameResult is reported when a game ends
type GameResult struct {
	Reason    string `json:"reason"`
	Aborted   bool   `json:"aborted"`
	RedScore  int    `json:"red_score"`
	BlueScore int    `json:"blue_score"`
}

// Teams holds the roster per team. Each slice is ordered by the time players
// joined that team, so the last element is the most recent arrival.
type Teams struct {
	Free      []Player `json:"free"`
	Red       []Player `json:"red"`
	Blue      []Player `json:"blue"`
	Spectator []Player `json:"spectator"`
}

// Of returns the roster of a team
func (t Teams) Of(team Team) []Player {
	switch team {
	case TeamFree:
		return t.Free
	case TeamRed:
		return t.Red
	case TeamBlue:
		return t.Blue
	case TeamSpectator:
		return t.Spectator
	}
	return nil
}

// Quake Live gametype short names
const (
	GameTypeFFA  = "ffa"
	GameTypeDuel = "duel"
	GameTypeRace = "race"
	GameTypeTDM  = "tdm"
	GameTypeCA   = "ca"
	GameTypeCTF  = "ctf"
	GameType1F   = "1f"
	GameTypeOB   = "ob"
	GameTypeHAR  = "har"
	GameTypeFT   = "ft"
	GameTypeDOM  = "dom"
	GameTypeAD   = "ad"
	GameTypeRR   = "rr"
)

// GameTypeFromInt converts Quake Live's numeric g_gametype to its short name
func GameTypeFromInt(gt int) string {
	switch gt {
	case 0:
		return GameTypeFFA
	case 1:
		return GameTypeDuel
	case 2:
		return GameTypeRace
	case 3:
		return GameTypeTDM
	case 4:
		return GameTypeCA
	case 5:
		return GameTypeCTF
	case 6:
		return GameType1F
	case 7:
		return GameTypeOB
	case 8:
		return GameTypeHAR
	case 9:
		return GameTypeFT
	case 10:
		return GameTypeDOM
	case 11:
		return GameTypeAD
	case 12:
		return GameTypeRR
	default:
		return "unknown"
	}
}

// IsTeamGameType returns true if the game type is played between red and blue
func IsTeamGameType(gameType string) bool {
	switch gameType {
	case GameTypeTDM, GameTypeCA, GameTypeCTF, GameType1F, GameTypeOB, GameTypeHAR,
		GameTypeFT, GameTypeDOM, GameTypeAD:
		return true
	default:
		return false
	}
}
