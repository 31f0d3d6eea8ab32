package duelarena

const (
	msgActivated         = "DuelArena activated! Round winner stays in, loser rotates with spectator."
	cpActivated          = "DuelArena activated!"
	msgDeactivated       = "DuelArena has been deactivated!"
	cpDeactivated        = "DuelArena deactivated!"
	msgReadyUp           = "Ready up for ^6DuelArena^7! Round winner stays in, loser rotates with spectator."
	cpReadyUp            = "Ready up for ^6DuelArena^7!"
	msgRotationManaged   = "Server is now in ^6DuelArena^7 mode. You will automatically rotate with round loser."
	msgBackToQueue       = "%s, you've been put back to DuelArena queue. Prepare for your next duel!"
	msgPairing           = "DuelArena: %s ^2vs^7 %s"
	cpPairing            = "%s ^2vs^7 %s"
	msgResultsHeader     = "DuelArena results:"
	msgResultsLine       = "Place ^3%d.^7 %s ^7(Wins:^2%d^7)"
	msgJoinHint          = "%s^7, type !join to join Duel Arena or press join button to force switch to Clan Arena!"
	msgActivateHint      = "%s, join to activate DuelArena! Round winner stays in, loser rotates with spectator."
	msgJoined            = "You successfully joined the DuelArena queue. Prepare for your duel!"
	msgJoinedBroadcast   = "%s^7 joined DuelArena!"
	msgAlreadyActive     = "^7DuelArena already active!"
	msgVoteWarmupOnly    = "^7DuelArena votes only allowed in warmup!"
	msgVoteUnavailable   = "^6!duel^7 votes not available with ^6%d^7 or more players connected"
	msgAlreadyVoted      = "%s^7 you already voted for DuelArena!"
	msgVotePassed        = "^7Total DuelArena votes = ^6%d^7, vote passed!"
	msgVoteNeedMore      = "^7Total DuelArena votes = ^6%d^7, but I need ^6%d^7 more to activate DuelArena."
	msgStrategyState     = "Current DuelArena state is: ^6%s"
	msgStrategyForced    = "^7Duelarena is now ^6forced^7!"
	msgStrategyAutomatic = "^7Duelarena is now ^6automatic^7!"
)
