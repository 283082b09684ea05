package scanbuf

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

type portRead struct {
	data  string
	err   error
	delay time.Duration
}

// scriptedPort replays reads, then behaves like an unplugged device.
type scriptedPort struct {
	mu    sync.Mutex
	reads []portRead
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.reads) == 0 {
		p.mu.Unlock()
		return 0, io.EOF
	}
	r := p.reads[0]
	p.reads = p.reads[1:]
	p.mu.Unlock()

	time.Sleep(r.delay)
	return copy(b, r.data), r.err
}

func TestIdleSerialReadKeepsFeeding(t *testing.T) {
	b, s, rec := newManual(t)
	port := &scriptedPort{reads: []portRead{
		{err: io.EOF},
		{err: io.EOF, delay: 80 * time.Millisecond},
		{err: io.EOF, delay: 80 * time.Millisecond},
		{data: "BX-1\r\n"},
	}}

	done := make(chan error, 1)
	go func() { done <- Feed(context.Background(), &idlePort{r: port, timeout: serialReadTimeout}, b) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Feed error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Feed did not stop on a vanished device")
	}

	s.Advance(DefaultQuiet)
	if got := rec.codes(); len(got) != 1 || got[0] != "BX-1" {
		t.Fatalf("codes mismatch: %v", got)
	}
}

func TestIdlePortTimeoutIsNotEOF(t *testing.T) {
	p := &idlePort{r: &scriptedPort{reads: []portRead{{err: io.EOF, delay: 80 * time.Millisecond}}}, timeout: serialReadTimeout}
	if n, err := p.Read(make([]byte, 8)); n != 0 || err != nil {
		t.Fatalf("idle read = %d, %v", n, err)
	}
	for i := 1; i < maxInstantEOF; i++ {
		if _, err := p.Read(make([]byte, 8)); err != nil {
			t.Fatalf("instant read %d ended the port: %v", i, err)
		}
	}
	if _, err := p.Read(make([]byte, 8)); err != io.EOF {
		t.Fatalf("expected io.EOF after %d instant reads, got %v", maxInstantEOF, err)
	}
}

func TestFeedLinesCommitsEachLine(t *testing.T) {
	b, _, rec := newManual(t)

	in := "BX1\nTN1\r\n\n  TN2 \n"
	if err := FeedLines(context.Background(), strings.NewReader(in), b); err != nil {
		t.Fatalf("FeedLines error: %v", err)
	}
	got := rec.codes()
	if strings.Join(got, ",") != "BX1,TN1,TN2" {
		t.Fatalf("codes mismatch: %v", got)
	}
}

func TestFeedLinesWaitsForRelease(t *testing.T) {
	b, _, rec := newManual(t)
	b.Hold()

	done := make(chan error, 1)
	go func() { done <- FeedLines(context.Background(), strings.NewReader("BX1\n"), b) }()

	time.Sleep(120 * time.Millisecond)
	if got := rec.codes(); len(got) != 0 {
		t.Fatalf("committed while held: %v", got)
	}
	b.Release()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("FeedLines error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("FeedLines stuck after release")
	}
	if got := rec.codes(); len(got) != 1 || got[0] != "BX1" {
		t.Fatalf("codes mismatch: %v", got)
	}
}

func TestFeedLinesStopsWithContext(t *testing.T) {
	b, _, _ := newManual(t)
	b.Hold()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := FeedLines(ctx, strings.NewReader("BX1\n"), b); err != nil {
		t.Fatalf("FeedLines error: %v", err)
	}
}
