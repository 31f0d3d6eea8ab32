package duelarena

import "fmt"

// Strategy decides from the participant count whether duel mode should run
type Strategy int

const (
	// Automatic runs duel mode with exactly three participants
	Automatic Strategy = iota
	// Forced runs duel mode with three or more participants
	Forced
)

// ParseStrategy accepts the values of the !duelarena command
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "auto", "automatic":
		return Automatic, nil
	case "force", "forced":
		return Forced, nil
	}
	return Automatic, fmt.Errorf("unknown strategy %q", s)
}

func (s Strategy) String() string {
	if s == Forced {
		return "force"
	}
	return "auto"
}

// ShouldActivate reports whether n participants warrant duel mode
func (s Strategy) ShouldActivate(n int) bool {
	if s == Forced {
		return n > 2
	}
	return n == 3
}
