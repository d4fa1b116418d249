package intent

import "fmt"

// State is a stage of the search pipeline.
type State int

// Pipeline states in order.
const (
	StateCreated State = iota
	StateClassified
	StateDispatched
	StateMerging
	StateDetailPrefetch
	StateRanking
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	"created", "classified", "dispatched", "merging",
	"detail_prefetch", "ranking", "completed", "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// CanTransition reports whether from -> to is a legal edge.
// Stages advance strictly one step at a time; any non-terminal state may fail.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return to == from+1
}
