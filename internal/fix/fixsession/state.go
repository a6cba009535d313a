// Package fixsession implements the FIX session state machine: the
// Disconnected/Connecting/Connected/LoggedIn/LoggingOut/SequenceReset
// lifecycle, the heartbeat supervisor, and the deterministic post-logon
// orchestration sequence.
package fixsession

import (
	"errors"
	"fmt"
	"sync"

	"github.com/psx-connect/connector/pkg/metrics"
)

// ErrSequence wraps a session-level sequence error (a Logout or Reject
// that references a sequence mismatch), recovered by the dispatcher via
// destroy-socket -> delay -> force_reset/reset_all -> reconnect.
var ErrSequence = errors.New("fixsession: sequence error")

// ErrTransport wraps a socket read/write/connect failure.
var ErrTransport = errors.New("fixsession: transport error")

// ErrInvalidTransition reports an attempt to move the state machine along
// an edge the state diagram does not allow.
var ErrInvalidTransition = errors.New("fixsession: invalid state transition")

// State is one node of the session lifecycle.
type State string

const (
	StateDisconnected  State = "Disconnected"
	StateConnecting    State = "Connecting"
	StateConnected     State = "Connected"
	StateLoggedIn      State = "LoggedIn"
	StateLoggingOut    State = "LoggingOut"
	StateSequenceReset State = "SequenceReset"
	StateError         State = "Error"
)

// Machine holds the current session state. It has a single owner (the
// dispatcher's transport loop); all transitions go through its methods so
// an illegal edge is rejected rather than silently applied.
type Machine struct {
	mu      sync.Mutex
	state   State
	metrics metrics.SessionMetrics
}

// New returns a Machine starting in StateDisconnected.
func New(m metrics.SessionMetrics) *Machine {
	return &Machine{state: StateDisconnected, metrics: m}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) transition(to State, allowed ...State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok := false
	for _, s := range allowed {
		if m.state == s {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	if m.metrics != nil {
		m.metrics.SetSessionState(string(to))
	}
	return nil
}

// Connect moves Disconnected -> Connecting.
func (m *Machine) Connect() error {
	return m.transition(StateConnecting, StateDisconnected)
}

// Connected moves Connecting -> Connected, once the TCP socket is up.
func (m *Machine) Connected() error {
	return m.transition(StateConnected, StateConnecting)
}

// LoggedIn moves Connected -> LoggedIn on receipt of the Logon response.
func (m *Machine) LoggedIn() error {
	return m.transition(StateLoggedIn, StateConnected)
}

// StartLogout moves LoggedIn -> LoggingOut for a normal logout.
func (m *Machine) StartLogout() error {
	return m.transition(StateLoggingOut, StateLoggedIn)
}

// EnterSequenceReset moves LoggedIn -> SequenceReset on a sequence-error
// Logout or Reject.
func (m *Machine) EnterSequenceReset() error {
	return m.transition(StateSequenceReset, StateLoggedIn)
}

// ReconnectFromSequenceReset moves SequenceReset -> Connecting once the
// socket has been destroyed, the recovery delay elapsed, and the
// sequence counters adjusted.
func (m *Machine) ReconnectFromSequenceReset() error {
	return m.transition(StateConnecting, StateSequenceReset)
}

// Disconnect moves any state to Disconnected - a socket close or error
// can happen from anywhere in the lifecycle, so this transition is
// always accepted.
func (m *Machine) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateDisconnected
	if m.metrics != nil {
		m.metrics.SetSessionState(string(StateDisconnected))
	}
}

// Fail moves any state to Error, used for unrecoverable conditions (e.g.
// shutdown mid-transition).
func (m *Machine) Fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateError
	if m.metrics != nil {
		m.metrics.SetSessionState(string(StateError))
	}
}
