package ingest

import "fmt"

// State is a step of one ingest invocation.
type State string

const (
	StateReceived      State = "received"
	StateValidated     State = "validated"
	StateDownloaded    State = "downloaded"
	StateAuthenticated State = "authenticated"
	StateUploaded      State = "uploaded"

	StateSkipped       State = "skipped"
	StateReady         State = "ready"
	StateFailed        State = "failed"
	StateUploadBlocked State = "upload_blocked"
)

var transitions = map[State][]State{
	StateReceived:      {StateValidated, StateSkipped},
	StateValidated:     {StateDownloaded, StateFailed},
	StateDownloaded:    {StateAuthenticated, StateFailed},
	StateAuthenticated: {StateUploaded, StateFailed, StateUploadBlocked},
	StateUploaded:      {StateReady, StateFailed, StateUploadBlocked},
}

func (s State) IsTerminal() bool {
	_, ok := transitions[s]
	return !ok
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// machine tracks an invocation's current state and rejects undeclared moves.
type machine struct {
	state   State
	history []State
}

func newMachine() *machine {
	return &machine{state: StateReceived, history: []State{StateReceived}}
}

func (m *machine) advance(to State) error {
	if !m.state.CanTransition(to) {
		return fmt.Errorf("illegal ingest transition %s -> %s", m.state, to)
	}
	m.state = to
	m.history = append(m.history, to)
	return nil
}

// failureState maps a taxonomy lesson status onto the terminal state.
func failureState(lessonStatus string) State {
	if lessonStatus == string(StateUploadBlocked) {
		return StateUploadBlocked
	}
	return StateFailed
}
