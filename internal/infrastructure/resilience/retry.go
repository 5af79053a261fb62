package resilience

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/GriffinCanCode/PhishGuard/internal/shared/clock"
)

// Backoff is a bounded linear backoff: the wait after the n-th consecutive
// failure is Initial*n, capped at Max, then spread by +-Jitter (a fraction).
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

// DefaultBackoff starts at one second and never waits longer than five.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: time.Second,
		Max:     5 * time.Second,
	}
}

// Delay returns the wait before the attempt following failure number n (n >= 1).
func (b Backoff) Delay(n int, rnd func() float64) time.Duration {
	if n < 1 {
		n = 1
	}
	var d time.Duration
	switch {
	case b.Initial <= 0:
		d = 0
	case b.Max > 0 && time.Duration(n) > b.Max/b.Initial:
		d = b.Max
	default:
		d = b.Initial * time.Duration(n)
	}
	if b.Jitter > 0 && rnd != nil {
		spread := float64(d) * b.Jitter
		d += time.Duration(spread*2*rnd() - spread)
		if d < 0 {
			d = 0
		}
	}
	return d
}

// Permanent marks an error that must stop the retry loop.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// RetryNotify observes a failed attempt before the retrier waits.
type RetryNotify func(attempt int, delay time.Duration, err error)

// Retrier repeats an operation until it succeeds, returns a Permanent error
// or the context ends. There is no attempt limit.
type Retrier struct {
	Backoff Backoff
	Clock   clock.Clock

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRetrier creates a retrier. A nil clock means the system clock.
func NewRetrier(backoff Backoff, clk clock.Clock) *Retrier {
	if clk == nil {
		clk = clock.System()
	}
	return &Retrier{
		Backoff: backoff,
		Clock:   clk,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do runs op until it returns nil. attempt numbers start at 1.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context, attempt int) error, notify RetryNotify) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx, attempt)
		if err == nil {
			return nil
		}

		var permanent *Permanent
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		delay := r.Backoff.Delay(attempt, r.random)
		if notify != nil {
			notify(attempt, delay, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.Clock.After(delay):
		}
	}
}

func (r *Retrier) random() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rnd == nil {
		r.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r.rnd.Float64()
}
