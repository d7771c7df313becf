package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

import (
	sentinel "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"github.com/alibaba/sentinel-golang/core/flow"
	"golang.org/x/time/rate"
)

// ClientLimiter keeps one token bucket per caller key and forgets callers
// that have been idle for longer than idleTTL.
type ClientLimiter struct {
	mu      sync.Mutex
	entries map[string]*clientEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type clientEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewClientLimiter(rps float64, burst int, idleTTL time.Duration) *ClientLimiter {
	if burst < 1 {
		burst = 1
	}
	if idleTTL <= 0 {
		idleTTL = 15 * time.Minute
	}
	return &ClientLimiter{
		entries: make(map[string]*clientEntry),
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Allow consumes a token for key.
func (l *ClientLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	ent, ok := l.entries[key]
	if !ok {
		ent = &clientEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = ent
	}
	ent.lastSeen = now
	l.mu.Unlock()

	return ent.lim.AllowN(now, 1)
}

// Cleanup drops idle callers and returns how many were removed.
func (l *ClientLimiter) Cleanup() int {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for k, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}

// Len is the number of tracked callers.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (l *ClientLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}

var sentinelInit struct {
	once sync.Once
	err  error
}

// FlowGuard caps the total request rate of one resource with a sentinel
// flow rule, independent of who is calling.
type FlowGuard struct {
	resource string
}

func NewFlowGuard(resource string, qps float64) (*FlowGuard, error) {
	sentinelInit.once.Do(func() {
		sentinelInit.err = sentinel.InitDefault()
	})
	if sentinelInit.err != nil {
		return nil, sentinelInit.err
	}
	_, err := flow.LoadRules([]*flow.Rule{
		{
			Resource:               resource,
			TokenCalculateStrategy: flow.Direct,
			ControlBehavior:        flow.Reject,
			Threshold:              qps,
			StatIntervalInMs:       1000,
		},
	})
	if err != nil {
		return nil, err
	}
	return &FlowGuard{resource: resource}, nil
}

// Enter reports whether the request may proceed; the returned func must be
// called when it completes.
func (g *FlowGuard) Enter() (func(), bool) {
	e, blocked := sentinel.Entry(g.resource, sentinel.WithTrafficType(base.Inbound))
	if blocked != nil {
		return nil, false
	}
	return func() { e.Exit() }, true
}

func retryLater(w http.ResponseWriter, msg string) {
	w.Header().Set("Retry-After", "1")
	errResp(w, http.StatusTooManyRequests, msg)
}
