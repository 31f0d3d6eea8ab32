package duelarena

import (
	"fmt"
	"math"

	"github.com/ernie/trinity-arena/internal/domain"
	"github.com/ernie/trinity-arena/internal/plugin"
)

// CmdDuelArena handles !duelarena [auto|force]
func (c *Controller) CmdDuelArena(p domain.Player, args []string) plugin.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(args) != 1 {
		c.msg(fmt.Sprintf(msgStrategyState, c.strategy))
		return plugin.Usage
	}
	s, err := ParseStrategy(args[0])
	if err != nil {
		c.msg(fmt.Sprintf(msgStrategyState, c.strategy))
		return plugin.Usage
	}

	c.setStrategy(s, "command")
	c.announceStrategy()
	c.evaluate()
	return plugin.Continue
}

// CmdVote handles !duel and !d, a warmup vote to force duel mode
func (c *Controller) CmdVote(p domain.Player, args []string) plugin.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.duelmode {
		c.msg(msgAlreadyActive)
		return plugin.Continue
	}
	if !c.host.Game().Warmup() {
		c.msg(msgVoteWarmupOnly)
		return plugin.Continue
	}

	connected := c.host.ConnectedCount()
	if connected > c.cfg.MaxActivePlayers {
		c.tell(p.ID, fmt.Sprintf(msgVoteUnavailable, c.cfg.MaxActivePlayers+1))
		return plugin.Continue
	}
	if !c.votes.Add(p.ID) {
		c.msg(fmt.Sprintf(msgAlreadyVoted, p.Name))
		return plugin.Continue
	}

	have := c.votes.Len()
	need := int(math.Floor(float64(connected)*c.cfg.VoteRatio)) + 1
	left := need - have
	passed := left <= 0 && have >= c.cfg.VoteMinVotes

	c.emit(domain.EventArenaVote, domain.ArenaVoteEvent{PlayerID: p.ID, Votes: have, Needed: need, Passed: passed})

	switch {
	case passed:
		c.msg(fmt.Sprintf(msgVotePassed, have))
		if err := c.host.PlaySound(c.cfg.VoteSound); err != nil {
			c.log.Warn().Err(err).Msg("Failed to play vote sound")
		}
		c.setStrategy(Forced, "vote")
		c.evaluate()
	case left > 0:
		c.msg(fmt.Sprintf(msgVoteNeedMore, have, left))
	}
	return plugin.Continue
}

// CmdJoin handles !join, which lets a spectator enter a running duel session
// through the queue.
func (c *Controller) CmdJoin(p domain.Player, args []string) plugin.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.duelmode || c.players.Contains(p.ID) {
		return plugin.Continue
	}
	cur, ok := c.host.Player(p.ID)
	if !ok || cur.Team != domain.TeamSpectator {
		return plugin.Continue
	}

	c.setStrategy(Forced, "join")
	c.addPlayer(p.ID)
	c.tell(p.ID, msgJoined)
	c.msg(fmt.Sprintf(msgJoinedBroadcast, cur.Name))

	c.log.Info().Str("player_id", string(p.ID)).Msg("Player joined arena queue")
	c.emit(domain.EventArenaJoin, domain.ArenaJoinEvent{SessionID: c.sessionID, PlayerID: p.ID, Name: cur.Name})
	c.evaluate()
	return plugin.Continue
}
