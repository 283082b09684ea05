package printer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// RawService is the DNS-SD type advertised by raw 9100 printers.
const RawService = "_pdl-datastream._tcp"

type Found struct {
	Instance string
	Host     string
	Port     int
}

func (f Found) Target() Target { return Target{Host: f.Host, Port: f.Port} }

// Discover browses the local network for raw-socket printers until wait
// elapses or ctx ends. Results are de-duplicated by address.
func Discover(ctx context.Context, wait time.Duration) ([]Found, error) {
	if wait <= 0 {
		wait = 3 * time.Second
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	seen := make(map[string]Found)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			mu.Lock()
			for _, ip := range e.AddrIPv4 {
				f := Found{Instance: e.Instance, Host: ip.String(), Port: e.Port}
				seen[f.Target().Addr()] = f
			}
			mu.Unlock()
		}
	}()

	// Browse closes entries once ctx is done.
	if err := resolver.Browse(ctx, RawService, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}
	<-ctx.Done()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Found, 0, len(seen))
	for _, f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out, nil
}
