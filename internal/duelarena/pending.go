package duelarena

import "github.com/ernie/trinity-arena/internal/domain"

// PendingMove marks a team change the controller issued itself, so the
// switch hook lets it through instead of treating it as a player action.
type PendingMove struct {
	Slot     domain.Team
	PlayerID domain.PlayerID
}

// pendingMoves holds at most one move per player and one owner per field slot
type pendingMoves struct {
	moves []PendingMove
}

func (p *pendingMoves) expect(slot domain.Team, id domain.PlayerID) {
	kept := p.moves[:0]
	for _, m := range p.moves {
		if m.PlayerID == id || (slot.OnField() && m.Slot == slot) {
			continue
		}
		kept = append(kept, m)
	}
	p.moves = append(kept, PendingMove{Slot: slot, PlayerID: id})
}

// claim consumes the move of id onto team, reporting whether one was pending
func (p *pendingMoves) claim(id domain.PlayerID, team domain.Team) bool {
	for i, m := range p.moves {
		if m.PlayerID == id && m.Slot == team {
			p.moves = append(p.moves[:i], p.moves[i+1:]...)
			return true
		}
	}
	return false
}

func (p *pendingMoves) drop(id domain.PlayerID) {
	for i, m := range p.moves {
		if m.PlayerID == id {
			p.moves = append(p.moves[:i], p.moves[i+1:]...)
			return
		}
	}
}

func (p *pendingMoves) clear() {
	p.moves = nil
}

func (p *pendingMoves) len() int {
	return len(p.moves)
}
