package scanbuf

import (
	"strings"
	"sync"
	"time"
)

const DefaultQuiet = 100 * time.Millisecond

// Event is one committed scan.
type Event struct {
	Code string
	At   time.Time
}

// Buffer coalesces keystrokes into scans. A scan is committed once the
// value has not changed for the quiet period. Empty values never commit.
type Buffer struct {
	quiet time.Duration
	sched Scheduler
	emit  func(Event)

	mu      sync.Mutex
	value   string
	gen     uint64
	pending Task
	held    bool
	onReset func()
}

func New(quiet time.Duration, sched Scheduler, emit func(Event)) *Buffer {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	if sched == nil {
		sched = System
	}
	return &Buffer{quiet: quiet, sched: sched, emit: emit}
}

// OnReset registers the hook fired by Clear, used to refocus the capture field.
func (b *Buffer) OnReset(f func()) {
	b.mu.Lock()
	b.onReset = f
	b.mu.Unlock()
}

// Change replaces the whole value. It reports false while the buffer is held.
func (b *Buffer) Change(value string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.held {
		return false
	}
	b.value = value
	b.rescheduleLocked()
	return true
}

// Append adds keystrokes. Line terminators and control bytes are dropped.
func (b *Buffer) Append(s string) bool {
	s = stripControl(s)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.held {
		return false
	}
	if s == "" {
		return true
	}
	b.value += s
	b.rescheduleLocked()
	return true
}

// Backspace removes the last rune.
func (b *Buffer) Backspace() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.held {
		return false
	}
	r := []rune(b.value)
	if len(r) == 0 {
		return true
	}
	b.value = string(r[:len(r)-1])
	b.rescheduleLocked()
	return true
}

// Commit emits the current value at once instead of waiting for the quiet
// period. It does nothing while held.
func (b *Buffer) Commit() {
	b.mu.Lock()
	b.cancelLocked()
	gen := b.gen
	b.mu.Unlock()
	b.commit(gen)
}

func (b *Buffer) Value() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Clear empties the buffer, drops any pending commit and fires the reset hook.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.value = ""
	b.cancelLocked()
	hook := b.onReset
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Hold makes the buffer read-only and drops any pending commit.
func (b *Buffer) Hold() {
	b.mu.Lock()
	b.held = true
	b.cancelLocked()
	b.mu.Unlock()
}

func (b *Buffer) Release() {
	b.mu.Lock()
	b.held = false
	b.mu.Unlock()
}

func (b *Buffer) Held() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held
}

func (b *Buffer) cancelLocked() {
	b.gen++
	if b.pending != nil {
		b.pending.Stop()
		b.pending = nil
	}
}

func (b *Buffer) rescheduleLocked() {
	b.cancelLocked()
	if strings.TrimSpace(b.value) == "" {
		return
	}
	gen := b.gen
	b.pending = b.sched.AfterFunc(b.quiet, func() { b.commit(gen) })
}

func (b *Buffer) commit(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || b.held {
		b.mu.Unlock()
		return
	}
	b.pending = nil
	code := strings.TrimSpace(b.value)
	at := b.sched.Now()
	emit := b.emit
	b.mu.Unlock()

	if code == "" || emit == nil {
		return
	}
	emit(Event{Code: code, At: at})
}

func stripControl(s string) string {
	if strings.IndexFunc(s, isControl) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, s)
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
