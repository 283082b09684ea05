package printer

import (
	"fmt"
	"sync"
)

type State int

const (
	Idle State = iota
	Connecting
	Writing
	ClosedSuccess
	ClosedFailure
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Writing:
		return "writing"
	case ClosedSuccess:
		return "closed_success"
	case ClosedFailure:
		return "closed_failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Terminal() bool { return s == ClosedSuccess || s == ClosedFailure }

type Event int

const (
	EvDial Event = iota
	EvConnected
	EvConnectFailed
	// EvWritten: the whole payload was handed to the socket.
	EvWritten
	EvWriteFailed
	// EvPeerClosed: the printer closed its side. Before EvWritten this is
	// always a failure.
	EvPeerClosed
	// EvPeerReset: the printer aborted the connection.
	EvPeerReset
	// EvUnacked: the printer closed while written bytes were still
	// unacknowledged.
	EvUnacked
	// EvClosed: we closed the socket ourselves.
	EvClosed
)

func (e Event) String() string {
	switch e {
	case EvDial:
		return "dial"
	case EvConnected:
		return "connected"
	case EvConnectFailed:
		return "connect_failed"
	case EvWritten:
		return "written"
	case EvWriteFailed:
		return "write_failed"
	case EvPeerClosed:
		return "peer_closed"
	case EvPeerReset:
		return "peer_reset"
	case EvUnacked:
		return "unacked"
	case EvClosed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Machine tracks one print job. Every event moves it at most once; terminal
// states absorb everything.
type Machine struct {
	mu      sync.Mutex
	state   State
	written bool
	kind    FailureKind
	trail   []State
}

func NewMachine() *Machine {
	return &Machine{state: Idle, trail: []State{Idle}}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Failure is the failure kind once the machine ends in ClosedFailure.
func (m *Machine) Failure() FailureKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kind
}

// Trail returns every state visited, starting with Idle.
func (m *Machine) Trail() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.trail...)
}

// Fire applies ev and returns the resulting state.
func (m *Machine) Fire(ev Event) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Terminal() {
		return m.state
	}

	switch m.state {
	case Idle:
		if ev == EvDial {
			m.move(Connecting)
		}
	case Connecting:
		switch ev {
		case EvConnected:
			m.move(Writing)
		case EvConnectFailed, EvPeerClosed, EvPeerReset, EvClosed:
			m.fail(FailConnect)
		}
	case Writing:
		switch ev {
		case EvWritten:
			m.written = true
		case EvWriteFailed:
			m.fail(FailWrite)
		case EvPeerReset, EvUnacked:
			m.fail(FailPrematureClose)
		case EvPeerClosed:
			if !m.written {
				m.fail(FailPrematureClose)
			}
		case EvClosed:
			if m.written {
				m.move(ClosedSuccess)
			} else {
				m.fail(FailPrematureClose)
			}
		}
	}
	return m.state
}

func (m *Machine) move(s State) {
	m.state = s
	m.trail = append(m.trail, s)
}

func (m *Machine) fail(k FailureKind) {
	m.kind = k
	m.move(ClosedFailure)
}
