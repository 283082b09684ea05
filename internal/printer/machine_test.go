package printer

import "testing"

func run(events ...Event) *Machine {
	m := NewMachine()
	for _, ev := range events {
		m.Fire(ev)
	}
	return m
}

func TestMachineHappyPath(t *testing.T) {
	m := run(EvDial, EvConnected, EvWritten, EvPeerClosed, EvClosed)
	if m.State() != ClosedSuccess {
		t.Fatalf("state mismatch: %s", m.State())
	}
	want := []State{Idle, Connecting, Writing, ClosedSuccess}
	got := m.Trail()
	if len(got) != len(want) {
		t.Fatalf("trail mismatch: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("trail mismatch: %v", got)
		}
	}
}

func TestMachineFailures(t *testing.T) {
	cases := []struct {
		name   string
		events []Event
		kind   FailureKind
	}{
		{"connect", []Event{EvDial, EvConnectFailed}, FailConnect},
		{"write", []Event{EvDial, EvConnected, EvWriteFailed}, FailWrite},
		{"peer closed before written", []Event{EvDial, EvConnected, EvPeerClosed}, FailPrematureClose},
		{"reset after written", []Event{EvDial, EvConnected, EvWritten, EvPeerReset}, FailPrematureClose},
		{"unacked after peer close", []Event{EvDial, EvConnected, EvWritten, EvUnacked}, FailPrematureClose},
		{"closed before written", []Event{EvDial, EvConnected, EvClosed}, FailPrematureClose},
	}
	for _, tc := range cases {
		m := run(tc.events...)
		if m.State() != ClosedFailure || m.Failure() != tc.kind {
			t.Fatalf("%s: state=%s kind=%s", tc.name, m.State(), m.Failure())
		}
	}
}

func TestMachineTerminalAbsorbs(t *testing.T) {
	m := run(EvDial, EvConnectFailed)
	if got := m.Fire(EvConnected); got != ClosedFailure {
		t.Fatalf("terminal state left: %s", got)
	}
	if got := m.Fire(EvClosed); got != ClosedFailure {
		t.Fatalf("terminal state left: %s", got)
	}

	m = run(EvDial, EvConnected, EvWritten, EvClosed)
	if got := m.Fire(EvPeerReset); got != ClosedSuccess {
		t.Fatalf("success overwritten: %s", got)
	}
}

func TestMachineIgnoresOutOfOrderEvents(t *testing.T) {
	m := NewMachine()
	if got := m.Fire(EvWritten); got != Idle {
		t.Fatalf("idle moved on written: %s", got)
	}
	m.Fire(EvDial)
	if got := m.Fire(EvWritten); got != Connecting {
		t.Fatalf("connecting moved on written: %s", got)
	}
}
