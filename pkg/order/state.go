package order

// State is an order's position in its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StatePreparing State = "preparing"
	StateReady     State = "ready"
	StateDelivered State = "delivered"
	StatePaid      State = "paid"
	StateCancelled State = "cancelled"
)

// States lists every state in lifecycle order.
var States = []State{StatePending, StatePreparing, StateReady, StateDelivered, StatePaid, StateCancelled}

var forward = map[State]State{
	StatePending:   StatePreparing,
	StatePreparing: StateReady,
	StateReady:     StateDelivered,
	StateDelivered: StatePaid,
}

// ParseState validates s.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", wrap(ErrUnknownState, "%q", s)
	}
	return st, nil
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StatePreparing, StateReady, StateDelivered, StatePaid, StateCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s State) Terminal() bool {
	return s == StatePaid || s == StateCancelled
}

// Editable reports whether items may still be added or removed in s.
func (s State) Editable() bool {
	return s == StatePending || s == StatePreparing
}

// Next returns the forward successor of s, if any.
func (s State) Next() (State, bool) {
	n, ok := forward[s]
	return n, ok
}

// CheckTransition validates from -> to against the lifecycle:
// pending -> preparing -> ready -> delivered -> paid, and cancelled from
// any non-terminal state.
func CheckTransition(from, to State) error {
	if from.Terminal() {
		return ErrTerminalState
	}
	if !to.Valid() {
		return ErrUnknownState
	}
	if to == StateCancelled {
		return nil
	}
	if n, ok := forward[from]; ok && n == to {
		return nil
	}
	return ErrInvalidTransition
}
