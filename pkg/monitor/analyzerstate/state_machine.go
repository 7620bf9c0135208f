package analyzerstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-netstatus/pkg/errors"
	"github.com/core-tools/hsu-netstatus/pkg/logging"
)

// State is where an analyzer is within one monitor run
type State string

const (
	// StatePending means the analyzer is queued and has not been started
	StatePending State = "pending"

	// StateStarting means the banner is printed and the log file is being opened
	StateStarting State = "starting"

	// StateRunning means the command is executing
	StateRunning State = "running"

	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"

	// StateSkipped means the run ended before the analyzer was started
	StateSkipped State = "skipped"
)

// Transition represents a state transition with metadata
type Transition struct {
	From      State
	To        State
	Operation string
	Timestamp time.Time
	Error     error
}

// StateMachine tracks one analyzer through a run. A run never restarts an analyzer,
// so succeeded, failed and skipped are final.
type StateMachine struct {
	analyzer         string
	currentState     State
	transitions      []Transition
	validTransitions map[State][]State
	mutex            sync.RWMutex
	logger           logging.Logger
}

func NewStateMachine(analyzer string, logger logging.Logger) *StateMachine {
	sm := &StateMachine{
		analyzer:     analyzer,
		currentState: StatePending,
		transitions:  make([]Transition, 0, 3),
		logger:       logger,
	}

	sm.validTransitions = map[State][]State{
		StatePending: {
			StateStarting, // Start
			StateSkipped,  // run aborted or cancelled first
		},
		StateStarting: {
			StateRunning, // log file opened
			StateFailed,  // log file could not be opened
		},
		StateRunning: {
			StateSucceeded,
			StateFailed,
		},
	}

	return sm
}

func (sm *StateMachine) Analyzer() string {
	return sm.analyzer
}

func (sm *StateMachine) CurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

func (sm *StateMachine) CanTransition(to State) bool {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.canTransitionUnsafe(to)
}

// IsFinal reports whether no further transition is possible
func (sm *StateMachine) IsFinal() bool {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.validTransitions[sm.currentState]) == 0
}

// Transition changes the state after checking the move is allowed
func (sm *StateMachine) Transition(to State, operation string, err error) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if !sm.canTransitionUnsafe(to) {
		return errors.NewValidationError(
			fmt.Sprintf("invalid state transition from '%s' to '%s'", sm.currentState, to),
			nil,
		).WithContext("analyzer", sm.analyzer).
			WithContext("from_state", string(sm.currentState)).
			WithContext("to_state", string(to)).
			WithContext("operation", operation)
	}

	from := sm.currentState
	sm.transitions = append(sm.transitions, Transition{
		From:      from,
		To:        to,
		Operation: operation,
		Timestamp: time.Now(),
		Error:     err,
	})
	sm.currentState = to

	if err != nil {
		sm.logger.Debugf("Analyzer state transition, analyzer: %s, %s->%s, operation: %s, error: %v",
			sm.analyzer, from, to, operation, err)
	} else {
		sm.logger.Debugf("Analyzer state transition, analyzer: %s, %s->%s, operation: %s",
			sm.analyzer, from, to, operation)
	}
	return nil
}

func (sm *StateMachine) canTransitionUnsafe(to State) bool {
	for _, validState := range sm.validTransitions[sm.currentState] {
		if validState == to {
			return true
		}
	}
	return false
}

func (sm *StateMachine) TransitionHistory() []Transition {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	history := make([]Transition, len(sm.transitions))
	copy(history, sm.transitions)
	return history
}

// StateInfo is a point-in-time snapshot of one analyzer's progress
type StateInfo struct {
	Analyzer        string
	CurrentState    State
	LastTransition  *Transition
	TransitionCount int
}

func (sm *StateMachine) Info() StateInfo {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	var lastTransition *Transition
	if len(sm.transitions) > 0 {
		last := sm.transitions[len(sm.transitions)-1]
		lastTransition = &last
	}

	return StateInfo{
		Analyzer:        sm.analyzer,
		CurrentState:    sm.currentState,
		LastTransition:  lastTransition,
		TransitionCount: len(sm.transitions),
	}
}
