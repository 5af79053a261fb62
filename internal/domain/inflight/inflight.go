package inflight

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/decision"
)

// Store receives settled decisions before waiters are released. Get is
// consulted once more inside the shared call so a caller that missed the
// cache just before a previous call settled does not fetch again.
type Store interface {
	Get(url string) (decision.Decision, bool)
	Put(url string, d decision.Decision)
}

// FetchFunc performs the upstream call for one URL.
type FetchFunc func(ctx context.Context, url string) (decision.Decision, error)

// Option customizes a Group.
type Option func(*Group)

// WithPendingHook calls fn with the number of outstanding upstream calls
// every time a call opens or settles.
func WithPendingHook(fn func(pending int)) Option {
	return func(g *Group) { g.onPending = fn }
}

// Group collapses concurrent lookups for the same URL into one FetchFunc call.
type Group struct {
	calls     singleflight.Group
	store     Store
	logger    *zap.Logger
	onPending func(int)
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	tickets   map[string]struct{} // Protected by mu
	waiters   map[string]int      // Protected by mu
}

// New creates a group writing settled decisions into store.
func New(store Store, logger *zap.Logger, opts ...Option) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Group{
		store:   store,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		tickets: make(map[string]struct{}),
		waiters: make(map[string]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve returns the decision for url, attaching to an outstanding call when
// one exists. shared reports whether the result was delivered to more than one
// caller. The fetch itself runs on the group's context, so ctx only bounds how
// long this caller waits; the call keeps going and still fills the store.
func (g *Group) Resolve(ctx context.Context, url string, fetch FetchFunc) (d decision.Decision, shared bool, err error) {
	g.join(url)
	defer g.leave(url)

	ch := g.calls.DoChan(url, func() (interface{}, error) {
		if g.store != nil {
			if d, ok := g.store.Get(url); ok {
				return d, nil
			}
		}

		g.open(url)
		defer g.settle(url)

		d, err := fetch(g.ctx, url)
		if err != nil {
			g.logger.Debug("in-flight fetch failed", zap.String("url", url), zap.Error(err))
			return nil, err
		}
		if g.store != nil {
			g.store.Put(url, d)
		}
		return d, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return decision.Decision{}, res.Shared, res.Err
		}
		return res.Val.(decision.Decision), res.Shared, nil
	case <-ctx.Done():
		return decision.Decision{}, false, ctx.Err()
	}
}

// Pending returns the number of outstanding upstream calls.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tickets)
}

// Waiters returns how many callers are currently waiting on url.
func (g *Group) Waiters(url string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters[url]
}

// Close cancels every outstanding fetch. Waiters receive the fetch error.
func (g *Group) Close() {
	g.cancel()
}

func (g *Group) join(url string) {
	g.mu.Lock()
	g.waiters[url]++
	g.mu.Unlock()
}

func (g *Group) leave(url string) {
	g.mu.Lock()
	if g.waiters[url] <= 1 {
		delete(g.waiters, url)
	} else {
		g.waiters[url]--
	}
	g.mu.Unlock()
}

func (g *Group) open(url string) {
	g.mu.Lock()
	g.tickets[url] = struct{}{}
	g.reportPending()
	g.mu.Unlock()
}

func (g *Group) settle(url string) {
	g.mu.Lock()
	delete(g.tickets, url)
	g.reportPending()
	g.mu.Unlock()
}

// reportPending must be called with mu held so hook calls observe counts in order.
func (g *Group) reportPending() {
	if g.onPending != nil {
		g.onPending(len(g.tickets))
	}
}
