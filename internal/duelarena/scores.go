package duelarena

import (
	"sort"

	"github.com/ernie/trinity-arena/internal/domain"
)

// Ledger is the per-player round win tally of one duel session. Tallies
// follow the player, not the team colour.
type Ledger struct {
	order  []domain.PlayerID
	scores map[domain.PlayerID]int
}

func NewLedger() *Ledger {
	return &Ledger{scores: make(map[domain.PlayerID]int)}
}

func (l *Ledger) Get(id domain.PlayerID) (int, bool) {
	v, ok := l.scores[id]
	return v, ok
}

// Score returns the tally of id, 0 when unknown
func (l *Ledger) Score(id domain.PlayerID) int {
	return l.scores[id]
}

func (l *Ledger) Set(id domain.PlayerID, score int) {
	if _, ok := l.scores[id]; !ok {
		l.order = append(l.order, id)
	}
	l.scores[id] = score
}

// Seed sets a zero tally for id unless it already has one
func (l *Ledger) Seed(id domain.PlayerID) {
	if _, ok := l.scores[id]; !ok {
		l.Set(id, 0)
	}
}

func (l *Ledger) Inc(id domain.PlayerID) {
	l.Set(id, l.scores[id]+1)
}

// Max returns the highest tally, or 0 for an empty ledger
func (l *Ledger) Max() int {
	best := 0
	for _, v := range l.scores {
		if v > best {
			best = v
		}
	}
	return best
}

func (l *Ledger) Len() int {
	return len(l.order)
}

func (l *Ledger) Reset() {
	l.order = nil
	l.scores = make(map[domain.PlayerID]int)
}

// Standings ranks the ledger by wins, highest first. Equal tallies share a
// place and the next distinct tally takes the following place. Ties keep
// insertion order.
func (l *Ledger) Standings() []domain.Standing {
	standings := make([]domain.Standing, 0, len(l.order))
	for _, id := range l.order {
		standings = append(standings, domain.Standing{PlayerID: id, Wins: l.scores[id]})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Wins > standings[j].Wins
	})

	place := 0
	for i := range standings {
		if i == 0 || standings[i].Wins != standings[i-1].Wins {
			place++
		}
		standings[i].Place = place
	}
	return standings
}
