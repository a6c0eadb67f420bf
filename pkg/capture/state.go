package capture

import (
	"fmt"
	"sync"
)

type State int

const (
	StateIdle State = iota
	StateCapturingPrimary
	StateFallingBack
	StateCapturingFallback
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturingPrimary:
		return "capturing_primary"
	case StateFallingBack:
		return "falling_back"
	case StateCapturingFallback:
		return "capturing_fallback"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the legal moves of one capture invocation. A primary
// failure that is not a color failure ends the invocation directly.
var transitions = map[State][]State{
	StateIdle:              {StateCapturingPrimary},
	StateCapturingPrimary:  {StateSucceeded, StateFallingBack, StateFailed},
	StateFallingBack:       {StateCapturingFallback, StateFailed},
	StateCapturingFallback: {StateSucceeded, StateFailed},
}

// invocation is the state machine of a single Capture call. It is never
// reused.
type invocation struct {
	mu       sync.Mutex
	state    State
	observer func(from, to State)
}

func newInvocation(observer func(from, to State)) *invocation {
	return &invocation{state: StateIdle, observer: observer}
}

func (i *invocation) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *invocation) to(next State) error {
	i.mu.Lock()
	from := i.state
	if !canTransition(from, next) {
		i.mu.Unlock()
		return fmt.Errorf("capture: illegal transition %s -> %s", from, next)
	}
	i.state = next
	i.mu.Unlock()

	if i.observer != nil {
		i.observer(from, next)
	}
	return nil
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
