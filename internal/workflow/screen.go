package workflow

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"boxscan/internal/assign"
	"boxscan/internal/resolve"
	"boxscan/internal/scanbuf"
	"boxscan/internal/session"
)

// Deps are the collaborators shared by both screens.
type Deps struct {
	Resolver *resolve.Resolver
	Assign   *assign.Coordinator
	Session  session.Store
	Log      *log.Logger

	// Sched and Quiet drive the capture field debounce. Zero values mean
	// real timers and scanbuf.DefaultQuiet.
	Sched scanbuf.Scheduler
	Quiet time.Duration
}

func (d Deps) logger() *log.Logger {
	if d.Log == nil {
		return log.New(io.Discard, "", 0)
	}
	return d.Log
}

func (d Deps) now() time.Time {
	if d.Sched == nil {
		return time.Now()
	}
	return d.Sched.Now()
}

// observers fan state changes and notices out to the UI layers. Callbacks
// run outside the screen lock.
type observers struct {
	mu       sync.Mutex
	onChange []func()
	onNotice []func(Notice)
}

func (o *observers) OnChange(f func()) {
	o.mu.Lock()
	o.onChange = append(o.onChange, f)
	o.mu.Unlock()
}

func (o *observers) OnNotice(f func(Notice)) {
	o.mu.Lock()
	o.onNotice = append(o.onNotice, f)
	o.mu.Unlock()
}

func (o *observers) changed() {
	o.mu.Lock()
	fs := append([]func(){}, o.onChange...)
	o.mu.Unlock()
	for _, f := range fs {
		f()
	}
}

func (o *observers) notify(n Notice) {
	o.mu.Lock()
	fs := append([]func(Notice){}, o.onNotice...)
	o.mu.Unlock()
	for _, f := range fs {
		f(n)
	}
}

// withTimeout keeps a handler from outliving the screen context.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, 30*time.Second)
}
