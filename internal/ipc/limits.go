package ipc

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var errListenerClosed = errors.New("listener closed")

// admission paces accepts and caps concurrent connections. A zero cap or
// rate means unlimited. Nothing is ever turned away: callers wait for a slot
// and a token, and idle peers are bounded by the read deadline instead.
// Every peer is local, so there is no per-address bookkeeping.
type admission struct {
	current atomic.Int64
	slots   chan struct{}
	limiter *rate.Limiter
}

func newAdmission(maxConnections int, acceptRate float64, burst int) *admission {
	a := &admission{limiter: rate.NewLimiter(rate.Inf, 0)}
	if maxConnections > 0 {
		a.slots = make(chan struct{}, maxConnections)
	}
	if acceptRate > 0 {
		if burst <= 0 {
			burst = int(math.Max(1, math.Ceil(acceptRate)))
		}
		a.limiter = rate.NewLimiter(rate.Limit(acceptRate), burst)
	}
	return a
}

// wait blocks until the next connection may be accepted. It reports whether
// the caller had to wait, and fails only when ctx or done ends first.
func (a *admission) wait(ctx context.Context, done <-chan struct{}) (bool, error) {
	waited := false

	r := a.limiter.Reserve()
	if !r.OK() {
		return false, errors.New("accept rate burst is zero")
	}
	if delay := r.Delay(); delay > 0 {
		waited = true
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			r.Cancel()
			return waited, ctx.Err()
		case <-done:
			timer.Stop()
			r.Cancel()
			return waited, errListenerClosed
		}
	}

	if a.slots != nil {
		select {
		case a.slots <- struct{}{}:
		default:
			waited = true
			select {
			case a.slots <- struct{}{}:
			case <-ctx.Done():
				return waited, ctx.Err()
			case <-done:
				return waited, errListenerClosed
			}
		}
	}
	a.current.Add(1)
	return waited, nil
}

func (a *admission) release() {
	a.current.Add(-1)
	if a.slots != nil {
		<-a.slots
	}
}

func (a *admission) inFlight() int64 {
	return a.current.Load()
}
