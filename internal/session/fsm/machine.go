package fsm

import (
	"errors"
	"sync"
)

// State describes where a device client is within a turn.
type State string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateSending       State = "sending"
	StateAwaitingDebug State = "awaiting_debug"
	StateClosed        State = "closed"
)

var (
	// ErrBusy is returned by Begin while another turn is running.
	ErrBusy = errors.New("turn already in flight")
	// ErrClosed is returned by Begin once the machine is closed.
	ErrClosed = errors.New("session closed")
)

// Machine is a lightweight deterministic turn state machine. It admits at most
// one turn at a time.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// New creates a state machine in the idle state.
func New() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Begin claims the machine for a new turn.
func (m *Machine) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateIdle:
		m.state = StateConnecting
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return ErrBusy
	}
}

// OnSending marks the main event as being sent.
func (m *Machine) OnSending() {
	m.advance(StateSending)
}

// OnAwaitingDebug marks the wait for downchannel debugging data.
func (m *Machine) OnAwaitingDebug() {
	m.advance(StateAwaitingDebug)
}

// End releases the turn.
func (m *Machine) End() {
	m.advance(StateIdle)
}

// Close moves the machine into the terminal state.
func (m *Machine) Close() {
	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()
}

// advance moves to state unless the machine was closed.
func (m *Machine) advance(state State) {
	m.mu.Lock()
	if m.state != StateClosed {
		m.state = state
	}
	m.mu.Unlock()
}
