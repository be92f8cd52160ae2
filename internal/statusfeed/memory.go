package statusfeed

import (
	"context"
	"sync"

	"github.com/angelmondragon/paytrack/internal/payments"
)

// MemoryFeed is an in-process feed for embedding callers and tests. Publish
// delivers synchronously on the caller's goroutine.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]Handler
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[int]Handler)}
}

// Subscribe registers onUpdate for reference until unsubscribed or ctx ends.
func (m *MemoryFeed) Subscribe(ctx context.Context, reference string, onUpdate Handler) (Subscription, error) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	if m.subs[reference] == nil {
		m.subs[reference] = make(map[int]Handler)
	}
	m.subs[reference][id] = onUpdate
	m.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	release := func() error {
		once.Do(func() {
			close(stop)
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs[reference], id)
			if len(m.subs[reference]) == 0 {
				delete(m.subs, reference)
			}
		})
		return nil
	}
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				_ = release()
			case <-stop:
			}
		}()
	}
	return subscriptionFunc(release), nil
}

// Publish delivers status to every current subscriber of its reference.
func (m *MemoryFeed) Publish(_ context.Context, status payments.Status) error {
	m.mu.Lock()
	handlers := make([]Handler, 0, len(m.subs[status.Reference]))
	for _, h := range m.subs[status.Reference] {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(status)
	}
	return nil
}

// Subscribers reports how many subscriptions are open for reference.
func (m *MemoryFeed) Subscribers(reference string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[reference])
}
