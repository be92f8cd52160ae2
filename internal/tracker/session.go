package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/paytrack/internal/payments"
	"github.com/angelmondragon/paytrack/internal/statusfeed"
)

// session is one tracking run for a reference. Its channel handles are
// released exactly once, whichever path ends it.
type session struct {
	reference string
	ctx       context.Context
	cancel    context.CancelFunc

	// guarded by Tracker.mu
	last         *payments.Status
	pendingSince time.Time

	mu       sync.Mutex
	sub      statusfeed.Subscription
	released bool
	once     sync.Once
	err      error
}

func newSession(parent context.Context, reference string) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{reference: reference, ctx: ctx, cancel: cancel}
}

// attach hands the push subscription to the session. It reports false when the
// session was already released; the caller then owns the subscription.
func (s *session) attach(sub statusfeed.Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.sub = sub
	return true
}

// release stops the poll loop and unsubscribes the push channel. It never
// waits on channel goroutines, so it may run from inside a channel callback.
func (s *session) release() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.released = true
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()

		s.cancel()
		if sub != nil {
			s.err = sub.Unsubscribe()
		}
	})
	return s.err
}
