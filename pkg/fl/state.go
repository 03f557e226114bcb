package fl

import "slices"

type State string

const (
	Idle         State = "idle"
	Accumulating State = "accumulating"
	Aggregating  State = "aggregating"
)

var transitions = map[State][]State{
	Idle:         {Accumulating},
	Accumulating: {Aggregating, Idle},
	Aggregating:  {Idle},
}

func ValidateTransition(from, to State) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}

	return slices.Contains(allowed, to)
}
