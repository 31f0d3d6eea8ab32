package duelarena

import "github.com/ernie/trinity-arena/internal/domain"

// Host is the game server facade the controller reads from and commands.
// Rosters returned by Teams are ordered by arrival on each team.
type Host interface {
	// Game returns the live game, or nil when the server has none
	Game() *domain.Game
	Teams() domain.Teams
	Player(id domain.PlayerID) (domain.Player, bool)
	ConnectedCount() int

	Put(id domain.PlayerID, team domain.Team) error
	AddTeamScore(team domain.Team, delta int) error
	Msg(text string) error
	CenterPrint(text string) error
	Tell(id domain.PlayerID, text string) error
	PlaySound(path string) error
}

// Notifier receives arena events. Notify must not block.
type Notifier interface {
	Notify(e domain.Event)
}

// NameResolver looks up the last known name of a player who may have left
type NameResolver interface {
	Name(id domain.PlayerID) (string, bool)
}
