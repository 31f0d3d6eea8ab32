package duelarena

import "github.com/ernie/trinity-arena/internal/domain"

// Playerset is an insertion-ordered set of participants
type Playerset struct {
	ids []domain.PlayerID
}

// Add inserts id and reports whether it was absent
func (s *Playerset) Add(id domain.PlayerID) bool {
	if s.Contains(id) {
		return false
	}
	s.ids = append(s.ids, id)
	return true
}

// Remove deletes id and reports whether it was present
func (s *Playerset) Remove(id domain.PlayerID) bool {
	i := indexOf(s.ids, id)
	if i < 0 {
		return false
	}
	s.ids = append(s.ids[:i], s.ids[i+1:]...)
	return true
}

func (s *Playerset) Contains(id domain.PlayerID) bool {
	return indexOf(s.ids, id) >= 0
}

func (s *Playerset) Len() int {
	return len(s.ids)
}

// IDs returns a copy of the members in insertion order
func (s *Playerset) IDs() []domain.PlayerID {
	return append([]domain.PlayerID(nil), s.ids...)
}

// Retain keeps only the members for which keep returns true
func (s *Playerset) Retain(keep func(domain.PlayerID) bool) {
	s.ids = retain(s.ids, keep)
}

func (s *Playerset) Clear() {
	s.ids = nil
}

// Queue holds the players waiting for a duel. Position 0 is the back of the
// line: Enqueue inserts there and Pop takes the last position.
type Queue struct {
	ids []domain.PlayerID
}

// Enqueue inserts id at position 0. It is a no-op if id is already queued.
func (q *Queue) Enqueue(id domain.PlayerID) bool {
	if q.Contains(id) {
		return false
	}
	q.ids = append([]domain.PlayerID{id}, q.ids...)
	return true
}

// Promote moves id to the last position, so it is the next one popped
func (q *Queue) Promote(id domain.PlayerID) {
	q.Remove(id)
	q.ids = append(q.ids, id)
}

// Pop removes and returns the player at the last position
func (q *Queue) Pop() (domain.PlayerID, bool) {
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[len(q.ids)-1]
	q.ids = q.ids[:len(q.ids)-1]
	return id, true
}

func (q *Queue) Remove(id domain.PlayerID) bool {
	i := indexOf(q.ids, id)
	if i < 0 {
		return false
	}
	q.ids = append(q.ids[:i], q.ids[i+1:]...)
	return true
}

func (q *Queue) Contains(id domain.PlayerID) bool {
	return indexOf(q.ids, id) >= 0
}

func (q *Queue) Len() int {
	return len(q.ids)
}

// IDs returns a copy of the queue, position 0 first
func (q *Queue) IDs() []domain.PlayerID {
	return append([]domain.PlayerID(nil), q.ids...)
}

func (q *Queue) Retain(keep func(domain.PlayerID) bool) {
	q.ids = retain(q.ids, keep)
}

func (q *Queue) Clear() {
	q.ids = nil
}

func indexOf(ids []domain.PlayerID, id domain.PlayerID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func retain(ids []domain.PlayerID, keep func(domain.PlayerID) bool) []domain.PlayerID {
	kept := ids[:0]
	for _, id := range ids {
		if keep(id) {
			kept = append(kept, id)
		}
	}
	return kept
}
