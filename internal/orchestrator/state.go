package orchestrator

import "fmt"

// State is a phase of a mission run.
type State string

const (
	StateStarting   State = "starting"
	StatePlanning   State = "planning"
	StatePlanFailed State = "plan_failed"
	StateExecuting  State = "executing"
	StateReporting  State = "reporting"
	StateDone       State = "done"
)

// transitions lists the allowed next states. A run makes a single forward
// pass; PlanFailed and Done are terminal.
var transitions = map[State][]State{
	StateStarting:  {StatePlanning},
	StatePlanning:  {StatePlanFailed, StateExecuting},
	StateExecuting: {StateReporting},
	StateReporting: {StateDone},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}

type machine struct {
	state  State
	onMove func(from, to State)
}

func (m *machine) move(to State) error {
	if !CanTransition(m.state, to) {
		return fmt.Errorf("invalid state transition %s -> %s", m.state, to)
	}
	from := m.state
	m.state = to
	if m.onMove != nil {
		m.onMove(from, to)
	}
	return nil
}
