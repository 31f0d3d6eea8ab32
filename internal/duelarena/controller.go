// Package duelarena turns a clan arena match into a queued one versus one
// rotation: the round winner stays in and the loser swaps with the next
// waiting spectator.
package duelarena

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/config"
	"github.com/ernie/trinity-arena/internal/domain"
	"github.com/ernie/trinity-arena/internal/plugin"
)

// Options carries the optional collaborators of a Controller
type Options struct {
	ServerID int64
	Notifier Notifier
	Names    NameResolver
}

// Controller is the duel arena state machine of one game server.
// All exported methods are safe for concurrent use.
type Controller struct {
	host  Host
	sched Scheduler
	cfg   config.ArenaConfig
	opts  Options
	log   zerolog.Logger

	mu        sync.Mutex
	strategy  Strategy
	duelmode  bool
	initduel  bool
	sessionID string
	players   Playerset
	queue     Queue
	scores    *Ledger
	pending   pendingMoves
	votes     Playerset

	tasks      map[uint64]func() bool
	nextTask   uint64
	generation uint64
}

// New creates a controller in the inactive state
func New(host Host, sched Scheduler, cfg config.ArenaConfig, logger zerolog.Logger, opts Options) *Controller {
	if sched == nil {
		sched = NewScheduler()
	}
	return &Controller{
		host:   host,
		sched:  sched,
		cfg:    cfg,
		opts:   opts,
		log:    logger.With().Str("component", "duelarena").Int64("server_id", opts.ServerID).Logger(),
		scores: NewLedger(),
		tasks:  make(map[uint64]func() bool),
	}
}

// Register hooks the controller's handlers and chat commands into d
func (c *Controller) Register(d *plugin.Dispatcher) error {
	d.OnTeamSwitch(c.HandleTeamSwitchAttempt)
	d.OnDisconnect(c.HandlePlayerDisconnect)
	d.OnPlayerLoaded(c.HandlePlayerLoaded)
	d.OnGameCountdown(c.HandleGameCountdown)
	d.OnRoundCountdown(c.HandleRoundCountdown)
	d.OnRoundEnd(c.HandleRoundEnd)
	d.OnGameEnd(c.HandleGameEnd)
	d.OnMapChange(c.HandleMapChange)

	commands := []plugin.Command{
		{Names: []string{"duelarena"}, Permission: c.cfg.AdminPermission, Usage: "[auto|force]", Handler: c.CmdDuelArena},
		{Names: []string{"duel", "d"}, Handler: c.CmdVote},
		{Names: []string{"join"}, Handler: c.CmdJoin},
	}
	for _, cmd := range commands {
		if err := d.AddCommand(cmd); err != nil {
			return fmt.Errorf("registering !%s: %w", cmd.Names[0], err)
		}
	}
	return nil
}

// Snapshot returns the current controller state
func (c *Controller) Snapshot() domain.ArenaState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return domain.ArenaState{
		ServerID:  c.opts.ServerID,
		Active:    c.duelmode,
		Pending:   c.initduel,
		Strategy:  c.strategy.String(),
		SessionID: c.sessionID,
		Playerset: c.players.IDs(),
		Queue:     c.queue.IDs(),
		Standings: c.standings(),
		Votes:     c.votes.Len(),
	}
}

// SetStrategy switches the activation strategy and re-evaluates duel mode
func (c *Controller) SetStrategy(s Strategy, source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setStrategy(s, source)
	c.announceStrategy()
	c.evaluate()
}

// Reset drops all session state except the playerset and cancels delayed work
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

// Reload resets the session and rebuilds the playerset from the players
// currently on red and blue.
func (c *Controller) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	c.players.Clear()
	teams := c.host.Teams()
	for _, p := range append(append([]domain.Player(nil), teams.Red...), teams.Blue...) {
		c.players.Add(p.ID)
	}
	c.log.Info().Int("playerset", c.players.Len()).Msg("Reloaded arena playerset from roster")
}

func (c *Controller) reset() {
	c.cancelTasks()
	c.strategy = Automatic
	c.duelmode = false
	c.initduel = false
	c.sessionID = ""
	c.queue.Clear()
	c.scores.Reset()
	c.pending.clear()
	c.votes.Clear()
}

// schedule runs f after d under the controller lock, unless the session was
// reset in the meantime. Callers must hold c.mu.
func (c *Controller) schedule(d time.Duration, f func()) {
	c.nextTask++
	id := c.nextTask
	gen := c.generation
	c.tasks[id] = c.sched.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen {
			return
		}
		delete(c.tasks, id)
		f()
	})
}

func (c *Controller) cancelTasks() {
	for id, stop := range c.tasks {
		stop()
		delete(c.tasks, id)
	}
	c.generation++
}

func (c *Controller) setStrategy(s Strategy, source string) {
	if c.strategy == s {
		return
	}
	c.strategy = s
	c.log.Info().Str("strategy", s.String()).Str("source", source).Msg("Arena strategy changed")
	c.emit(domain.EventArenaStrategy, domain.ArenaStrategyEvent{Strategy: s.String(), Source: source})
}

func (c *Controller) announceStrategy() {
	if c.strategy == Forced {
		c.msg(msgStrategyForced)
	} else {
		c.msg(msgStrategyAutomatic)
	}
}

// evaluate prunes stale participants and moves between active and inactive
func (c *Controller) evaluate() {
	c.prune()

	switch {
	case !c.duelmode && c.shouldActivate():
		c.activate()
	case c.duelmode && c.shouldBeAborted():
		c.deactivate("participant count out of range")
	}

	c.log.Debug().
		Bool("duelmode", c.duelmode).
		Bool("initduel", c.initduel).
		Int("playerset", c.players.Len()).
		Int("queue", c.queue.Len()).
		Msg("Arena evaluated")
}

func (c *Controller) shouldActivate() bool {
	if !c.strategy.ShouldActivate(c.players.Len()) {
		return false
	}
	game := c.host.Game()
	if game.InProgress() && game.RedScore+game.BlueScore >= c.cfg.NormalToDuelThreshold {
		return false
	}
	return true
}

func (c *Controller) shouldBeAborted() bool {
	if !c.duelmode {
		return false
	}
	n := c.players.Len()
	// a duelist close to the round limit keeps the last two playing
	if n == 2 && !c.initduel && c.host.Game().InProgress() && c.scores.Max() >= c.cfg.DuelToNormalThreshold {
		return false
	}
	return !c.strategy.ShouldActivate(n)
}

// prune drops participants who left or whose ping makes them unplayable
func (c *Controller) prune() {
	keep := func(id domain.PlayerID) bool {
		p, ok := c.host.Player(id)
		return ok && p.Connected && p.Ping < c.cfg.MaxPing
	}
	c.players.Retain(keep)
	c.queue.Retain(keep)
}

func (c *Controller) activate() {
	if c.duelmode {
		return
	}
	if !c.initduel {
		c.scores.Reset()
	}
	c.duelmode = true
	c.sessionID = uuid.NewString()

	game := c.host.Game()
	if game != nil {
		c.msg(msgActivated)
		c.centerPrint(cpActivated)
	}
	if game.InProgress() {
		c.initduel = true
	}

	c.log.Info().
		Str("session_id", c.sessionID).
		Str("strategy", c.strategy.String()).
		Bool("pending", c.initduel).
		Msg("DuelArena activated")
	c.emit(domain.EventArenaActivated, domain.ArenaModeEvent{
		SessionID: c.sessionID,
		Strategy:  c.strategy.String(),
		Pending:   c.initduel,
	})
}

func (c *Controller) deactivate(reason string) {
	if !c.duelmode {
		return
	}
	wasPending := c.initduel
	c.duelmode = false
	c.initduel = false
	c.pending.clear()

	game := c.host.Game()
	if game != nil {
		c.msg(msgDeactivated)
		c.centerPrint(cpDeactivated)
	}

	switch {
	case game.InProgress() && !wasPending:
		if c.scores.Len() > 0 {
			c.printStandings()
		}
		c.resetTeamScores()
	case game.InProgress():
		// pairing never happened, team scores still belong to the normal match
	default:
		c.scores.Reset()
	}

	c.log.Info().Str("session_id", c.sessionID).Str("reason", reason).Msg("DuelArena deactivated")
	c.emit(domain.EventArenaDeactivated, domain.ArenaModeEvent{
		SessionID: c.sessionID,
		Strategy:  c.strategy.String(),
		Reason:    reason,
	})
}

func (c *Controller) addPlayer(id domain.PlayerID) {
	c.players.Add(id)
	if c.duelmode {
		c.queue.Enqueue(id)
		c.scores.Seed(id)
	}
}

// removePlayer takes id out of the arena. team is where the player stood when
// they left; a duelist leaving mid-match is replaced by the next in line.
func (c *Controller) removePlayer(id domain.PlayerID, team domain.Team) {
	wasMember := c.players.Remove(id)
	c.queue.Remove(id)
	c.pending.drop(id)

	if !wasMember || !c.duelmode || c.initduel || !team.OnField() || !c.host.Game().InProgress() {
		return
	}
	for _, p := range c.host.Teams().Of(team) {
		if p.ID != id {
			return
		}
	}
	c.prune()
	if c.shouldBeAborted() {
		return
	}
	c.emergencyReplace(id, team)
}

func (c *Controller) emergencyReplace(leaver domain.PlayerID, team domain.Team) {
	nextID, ok := c.queue.Pop()
	if !ok {
		c.deactivate("no replacement queued")
		return
	}
	next, ok := c.host.Player(nextID)
	if !ok || !next.Connected || next.Team != domain.TeamSpectator {
		c.deactivate("replacement unavailable")
		return
	}

	game := c.host.Game()
	c.scores.Set(leaver, game.TeamScore(team))
	delta := c.scores.Score(nextID) - game.TeamScore(team)
	c.put(nextID, team)
	c.addTeamScore(team, delta)

	c.log.Info().
		Str("leaver", string(leaver)).
		Str("replacement", string(nextID)).
		Str("team", team.String()).
		Int("delta", delta).
		Msg("Replaced departed duelist")
	c.emit(domain.EventArenaRotation, domain.ArenaRotationEvent{
		SessionID: c.sessionID,
		Loser:     leaver,
		Next:      nextID,
		Team:      team,
		Delta:     delta,
	})
}

// initDuel performs the first pairing of a session
func (c *Controller) initDuel() {
	c.prune()
	if c.players.Len() < 2 {
		c.deactivate("not enough players to pair")
		return
	}

	c.resetTeamScores()
	for _, id := range c.players.IDs() {
		c.scores.Seed(id)
	}
	for _, id := range c.players.IDs() {
		c.queue.Enqueue(id)
	}

	teams := c.host.Teams()
	redID, _ := c.queue.Pop()
	blueID, _ := c.queue.Pop()
	red, okRed := c.host.Player(redID)
	blue, okBlue := c.host.Player(blueID)
	if !okRed || !okBlue {
		c.deactivate("paired player unavailable")
		return
	}

	redTeam, blueTeam := c.arrange(red, blue)

	for _, p := range append(append([]domain.Player(nil), teams.Red...), teams.Blue...) {
		if p.ID != redID && p.ID != blueID {
			c.put(p.ID, domain.TeamSpectator)
		}
	}

	if game := c.host.Game(); game.InProgress() {
		c.addTeamScore(redTeam, c.scores.Score(redID)-game.TeamScore(redTeam))
		c.addTeamScore(blueTeam, c.scores.Score(blueID)-game.TeamScore(blueTeam))
	}
	c.initduel = false

	c.log.Info().
		Str("session_id", c.sessionID).
		Str("red", string(redID)).
		Str("blue", string(blueID)).
		Msg("Duel initialized")
	c.emit(domain.EventArenaDuel, domain.ArenaDuelEvent{SessionID: c.sessionID, Red: redID, Blue: blueID})
}

// arrange puts the popped pair on opposite teams with as few moves as
// possible and returns the team each one ends up on.
func (c *Controller) arrange(red, blue domain.Player) (domain.Team, domain.Team) {
	switch {
	case red.Team == domain.TeamRed && blue.Team == domain.TeamBlue,
		red.Team == domain.TeamBlue && blue.Team == domain.TeamRed:
		return red.Team, blue.Team
	case red.Team.OnField():
		c.put(blue.ID, red.Team.Opposite())
		return red.Team, red.Team.Opposite()
	case blue.Team.OnField():
		c.put(red.ID, blue.Team.Opposite())
		return blue.Team.Opposite(), blue.Team
	default:
		c.put(red.ID, domain.TeamRed)
		c.put(blue.ID, domain.TeamBlue)
		return domain.TeamRed, domain.TeamBlue
	}
}

// ensureDuelists sends a third field player back to spectator. With exactly
// three on the field, the extra one is whoever is queued or not a participant
// on the crowded team, falling back to its latest arrival.
func (c *Controller) ensureDuelists() {
	teams := c.host.Teams()
	if len(teams.Red)+len(teams.Blue) != 3 {
		return
	}
	crowded := teams.Red
	if len(teams.Blue) == 2 {
		crowded = teams.Blue
	}
	if len(crowded) != 2 {
		return
	}

	extra := crowded[len(crowded)-1]
	for _, p := range crowded {
		if c.queue.Contains(p.ID) || !c.players.Contains(p.ID) {
			extra = p
			break
		}
	}
	c.put(extra.ID, domain.TeamSpectator)
	c.log.Info().Str("player_id", string(extra.ID)).Msg("Moved extra field player to spectator")
}

// rotate swaps the loser of a round with the next queued player
func (c *Controller) rotate(winner domain.Team) {
	game := c.host.Game()
	if game == nil || game.Type != c.cfg.GameType {
		return
	}
	if game.RoundLimit > 0 && (game.RedScore == game.RoundLimit || game.BlueScore == game.RoundLimit) {
		return
	}
	if c.initduel {
		c.initDuel()
		return
	}
	if !c.duelmode || !winner.OnField() {
		return
	}

	loserTeam := winner.Opposite()
	loserScore := game.TeamScore(loserTeam)
	teams := c.host.Teams()
	if winners := teams.Of(winner); len(winners) > 0 {
		c.scores.Set(winners[len(winners)-1].ID, game.TeamScore(winner))
	}
	losers := teams.Of(loserTeam)

	if c.queue.Len() == 0 {
		c.prune()
		if c.players.Len() == 2 && !c.shouldBeAborted() {
			if len(losers) > 0 {
				c.scores.Set(losers[len(losers)-1].ID, loserScore)
			}
			return
		}
		c.deactivate("rotation queue empty")
		return
	}

	nextID, _ := c.queue.Pop()
	next, ok := c.host.Player(nextID)
	if !ok || !next.Connected {
		c.deactivate("next player disconnected")
		return
	}
	if next.Team != domain.TeamSpectator {
		c.log.Warn().
			Str("player_id", string(nextID)).
			Str("team", next.Team.String()).
			Msg("Next duelist is not a spectator")
		c.deactivate("next player already on a team")
		return
	}

	delta := c.scores.Score(nextID) - loserScore
	c.put(nextID, loserTeam)
	c.addTeamScore(loserTeam, delta)

	event := domain.ArenaRotationEvent{SessionID: c.sessionID, Next: nextID, Team: loserTeam, Delta: delta}
	if winners := teams.Of(winner); len(winners) > 0 {
		event.Winner = winners[len(winners)-1].ID
	}
	if len(losers) > 0 {
		loser := losers[len(losers)-1]
		c.queue.Enqueue(loser.ID)
		c.scores.Set(loser.ID, loserScore)
		c.put(loser.ID, domain.TeamSpectator)
		c.tell(loser.ID, fmt.Sprintf(msgBackToQueue, loser.Name))
		event.Loser = loser.ID
	}

	c.log.Info().
		Str("session_id", c.sessionID).
		Str("next", string(nextID)).
		Str("loser", string(event.Loser)).
		Str("team", loserTeam.String()).
		Int("delta", delta).
		Msg("Rotated duelists")
	c.emit(domain.EventArenaRotation, event)
}

func (c *Controller) resetTeamScores() {
	game := c.host.Game()
	if !game.InProgress() {
		return
	}
	c.addTeamScore(domain.TeamRed, -game.RedScore)
	c.addTeamScore(domain.TeamBlue, -game.BlueScore)
}

func (c *Controller) standings() []domain.Standing {
	standings := c.scores.Standings()
	for i := range standings {
		standings[i].Name, _ = c.playerName(standings[i].PlayerID)
	}
	return standings
}

func (c *Controller) printStandings() {
	standings := c.standings()
	if len(standings) == 0 {
		return
	}
	c.msg(msgResultsHeader)
	for _, s := range standings {
		if s.Name == "" {
			continue
		}
		c.msg(fmt.Sprintf(msgResultsLine, s.Place, s.Name, s.Wins))
	}
	c.emit(domain.EventArenaStandings, domain.ArenaStandingsEvent{SessionID: c.sessionID, Standings: standings})
}

func (c *Controller) playerName(id domain.PlayerID) (string, bool) {
	if p, ok := c.host.Player(id); ok && p.Name != "" {
		return p.Name, true
	}
	if c.opts.Names != nil {
		return c.opts.Names.Name(id)
	}
	return "", false
}

func (c *Controller) emit(eventType string, data interface{}) {
	if c.opts.Notifier == nil {
		return
	}
	c.opts.Notifier.Notify(domain.Event{
		Type:      eventType,
		ServerID:  c.opts.ServerID,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// put records the move as controller-owned before issuing it
func (c *Controller) put(id domain.PlayerID, team domain.Team) {
	c.pending.expect(team, id)
	if err := c.host.Put(id, team); err != nil {
		c.pending.drop(id)
		c.log.Warn().Err(err).Str("player_id", string(id)).Str("team", team.String()).Msg("Failed to move player")
	}
}

func (c *Controller) addTeamScore(team domain.Team, delta int) {
	if delta == 0 {
		return
	}
	if err := c.host.AddTeamScore(team, delta); err != nil {
		c.log.Warn().Err(err).Str("team", team.String()).Int("delta", delta).Msg("Failed to adjust team score")
	}
}

func (c *Controller) msg(text string) {
	if err := c.host.Msg(text); err != nil {
		c.log.Warn().Err(err).Msg("Failed to send message")
	}
}

func (c *Controller) centerPrint(text string) {
	if err := c.host.CenterPrint(text); err != nil {
		c.log.Warn().Err(err).Msg("Failed to center print")
	}
}

func (c *Controller) tell(id domain.PlayerID, text string) {
	if err := c.host.Tell(id, text); err != nil {
		c.log.Warn().Err(err).Str("player_id", string(id)).Msg("Failed to tell player")
	}
}
