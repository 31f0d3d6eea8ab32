package duelarena

import (
	"fmt"

	"github.com/ernie/trinity-arena/internal/domain"
	"github.com/ernie/trinity-arena/internal/plugin"
)

// HandleTeamSwitchAttempt keeps the playerset in sync with team joins and, while
// duel mode runs, rejects switches onto the field the controller did not issue.
func (c *Controller) HandleTeamSwitchAttempt(p domain.Player, oldTeam, newTeam domain.Team) plugin.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	game := c.host.Game()
	if game == nil {
		return plugin.Continue
	}
	if c.pending.claim(p.ID, newTeam) {
		return plugin.Continue
	}

	if newTeam == domain.TeamSpectator {
		if c.players.Contains(p.ID) {
			c.removePlayer(p.ID, oldTeam)
			c.evaluate()
		}
	} else if !c.players.Contains(p.ID) {
		c.addPlayer(p.ID)
		c.evaluate()
	}

	if game.Warmup() {
		if c.players.Len() == 3 {
			c.centerPrint(cpReadyUp)
			c.msg(msgReadyUp)
		}
		return plugin.Continue
	}

	if c.duelmode && newTeam != domain.TeamSpectator {
		c.tell(p.ID, msgRotationManaged)
		return plugin.StopAll
	}
	return plugin.Continue
}

// HandlePlayerDisconnect removes the player once the disconnect has settled.
// p is the player as last seen, including the team they held.
func (c *Controller) HandlePlayerDisconnect(p domain.Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.schedule(c.cfg.DisconnectDelay, func() {
		c.votes.Remove(p.ID)
		if cur, ok := c.host.Player(p.ID); ok && cur.Connected {
			return
		}
		if !c.players.Contains(p.ID) {
			c.queue.Remove(p.ID)
			return
		}
		c.removePlayer(p.ID, p.Team)
		c.evaluate()
	})
}

// HandlePlayerLoaded greets a fresh spectator with how to take part
func (c *Controller) HandlePlayerLoaded(p domain.Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.schedule(c.cfg.LoadedDelay, func() {
		game := c.host.Game()
		if game == nil {
			return
		}
		cur, ok := c.host.Player(p.ID)
		if !ok || cur.Team != domain.TeamSpectator {
			return
		}
		switch {
		case c.duelmode && game.InProgress() && !c.players.Contains(p.ID):
			c.tell(p.ID, fmt.Sprintf(msgJoinHint, cur.Name))
		case !c.duelmode && c.players.Len() == 2:
			c.tell(p.ID, fmt.Sprintf(msgActivateHint, cur.Name))
		}
	})
}

// HandleGameCountdown pairs the first duel shortly before the match starts
func (c *Controller) HandleGameCountdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.schedule(c.cfg.CountdownDelay, func() {
		c.evaluate()
		if c.duelmode {
			c.initDuel()
		}
	})
}

// HandleRoundCountdown finishes a pending pairing and announces the duel
func (c *Controller) HandleRoundCountdown(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initduel {
		c.initDuel()
	}
	if !c.duelmode {
		return
	}
	c.ensureDuelists()

	teams := c.host.Teams()
	if len(teams.Red) == 0 || len(teams.Blue) == 0 {
		return
	}
	red := teams.Red[len(teams.Red)-1].Name
	blue := teams.Blue[len(teams.Blue)-1].Name
	c.centerPrint(fmt.Sprintf(cpPairing, red, blue))
	c.msg(fmt.Sprintf(msgPairing, red, blue))
	c.log.Debug().Int("round", round).Str("red", red).Str("blue", blue).Msg("Announced duel")
}

// HandleRoundEnd rotates after the round result has settled on the server
func (c *Controller) HandleRoundEnd(winner domain.Team) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.schedule(c.cfg.RoundEndDelay, func() {
		c.rotate(winner)
	})
}

// HandleGameEnd requeues the final pair and prints the session results
func (c *Controller) HandleGameEnd(result domain.GameResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.host.Game() == nil || !c.duelmode || result.Aborted {
		return
	}

	winner, loser := domain.TeamRed, domain.TeamBlue
	if result.BlueScore > result.RedScore {
		winner, loser = domain.TeamBlue, domain.TeamRed
	}

	teams := c.host.Teams()
	if losers := teams.Of(loser); len(losers) == 1 {
		c.queue.Enqueue(losers[0].ID)
	}
	if winners := teams.Of(winner); len(winners) == 1 {
		c.queue.Promote(winners[0].ID)
		c.scores.Inc(winners[0].ID)
	}

	c.printStandings()
}

// HandleMapChange ends the session. The playerset survives the map change.
func (c *Controller) HandleMapChange(mapName, factory string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset()
	c.log.Info().Str("map", mapName).Str("factory", factory).Msg("Arena reset for new map")
}
