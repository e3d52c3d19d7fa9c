package agent

import "fmt"

// LoopState is the position of an agent inside a tool loop.
type LoopState string

const (
	StateIdle          LoopState = "idle"           // no response being handled
	StateAwaitingTool  LoopState = "awaiting_tool"  // tool calls dispatched, results pending
	StateAwaitingModel LoopState = "awaiting_model" // results appended, model re-invoked
	StateDone          LoopState = "done"           // final plain response appended
)

var validTransitions = map[LoopState][]LoopState{
	StateIdle:          {StateAwaitingTool, StateDone},
	StateAwaitingTool:  {StateAwaitingModel},
	StateAwaitingModel: {StateAwaitingTool, StateDone},
	StateDone:          {StateIdle},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to LoopState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned for an illegal loop transition.
type ErrInvalidTransition struct {
	From LoopState
	To   LoopState
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid loop transition: %s -> %s", e.From, e.To)
}

// loopMachine tracks one HandleToolCall run.
type loopMachine struct {
	state LoopState
	trace []LoopState
}

func newLoopMachine() *loopMachine {
	return &loopMachine{state: StateIdle, trace: []LoopState{StateIdle}}
}

func (m *loopMachine) to(next LoopState) error {
	if !CanTransition(m.state, next) {
		return ErrInvalidTransition{From: m.state, To: next}
	}
	m.state = next
	m.trace = append(m.trace, next)
	return nil
}
