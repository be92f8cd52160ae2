package statusfeed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/paytrack/internal/payments"
	"github.com/angelmondragon/paytrack/pkg/enums"
	pkgredis "github.com/angelmondragon/paytrack/pkg/redis"
)

type fakeStream struct {
	messages chan *goredis.Message
	mu       sync.Mutex
	closes   int
}

func (s *fakeStream) Messages() <-chan *goredis.Message { return s.messages }

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeSubscriber struct {
	stream  *fakeStream
	channel string
	err     error
}

func (f *fakeSubscriber) Subscribe(_ context.Context, channel string) (pkgredis.MessageStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.channel = channel
	return f.stream, nil
}

type collector struct {
	mu  sync.Mutex
	got []payments.Status
}

func (c *collector) handle(s payments.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, s)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func snapshot(reference string, status enums.PaymentStatus) payments.Status {
	return payments.Status{
		Reference: reference,
		Status:    status,
		Amount:    decimal.NewFromInt(50),
		Currency:  "ZMW",
	}
}

func message(t *testing.T, status payments.Status) *goredis.Message {
	t.Helper()
	payload, err := encode(status)
	require.NoError(t, err)
	return &goredis.Message{Payload: string(payload)}
}

func TestRedisFeedDeliversOnlyMatchingReference(t *testing.T) {
	stream := &fakeStream{messages: make(chan *goredis.Message, 4)}
	sub := &fakeSubscriber{stream: stream}
	feed, err := NewRedisFeed(sub, "pt:payment_status:", nil)
	require.NoError(t, err)

	var c collector
	subscription, err := feed.Subscribe(context.Background(), "WC_A", c.handle)
	require.NoError(t, err)
	assert.Equal(t, "pt:payment_status:WC_A", sub.channel)

	stream.messages <- &goredis.Message{Payload: "{not json"}
	stream.messages <- &goredis.Message{Payload: `{"reference":"WC_A","status":"settled"}`}
	stream.messages <- message(t, snapshot("WC_B", enums.PaymentStatusCompleted))
	stream.messages <- message(t, snapshot("WC_A", enums.PaymentStatusCompleted))

	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)
	c.mu.Lock()
	assert.Equal(t, enums.PaymentStatusCompleted, c.got[0].Status)
	c.mu.Unlock()

	require.NoError(t, subscription.Unsubscribe())
	require.NoError(t, subscription.Unsubscribe())
	assert.Equal(t, 1, stream.closeCount())
}

func TestRedisFeedStopsWhenContextEnds(t *testing.T) {
	stream := &fakeStream{messages: make(chan *goredis.Message)}
	feed, err := NewRedisFeed(&fakeSubscriber{stream: stream}, "pt:payment_status", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = feed.Subscribe(ctx, "WC_A", func(payments.Status) {})
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool { return stream.closeCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRedisFeedSubscribeError(t *testing.T) {
	feed, err := NewRedisFeed(&fakeSubscriber{err: errors.New("dial tcp: refused")}, "p", nil)
	require.NoError(t, err)
	_, err = feed.Subscribe(context.Background(), "WC_A", func(payments.Status) {})
	assert.Error(t, err)

	_, err = NewRedisFeed(nil, "p", nil)
	assert.Error(t, err)
}

type fakeChannelPublisher struct {
	marks      map[string]bool
	published  []string
	publishErr error
	cleared    int
}

func (f *fakeChannelPublisher) Publish(_ context.Context, channel string, _ []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, channel)
	return nil
}

func (f *fakeChannelPublisher) MarkPublished(_ context.Context, reference, status string, _ time.Duration) (bool, error) {
	key := reference + ":" + status
	if f.marks[key] {
		return false, nil
	}
	f.marks[key] = true
	return true, nil
}

func (f *fakeChannelPublisher) ClearPublished(_ context.Context, reference, status string) error {
	delete(f.marks, reference+":"+status)
	f.cleared++
	return nil
}

func TestRedisPublisherDedupesAndRetries(t *testing.T) {
	client := &fakeChannelPublisher{marks: map[string]bool{}}
	publisher, err := NewRedisPublisher(client, "pt:payment_status")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, publisher.Publish(ctx, snapshot("WC_A", enums.PaymentStatusPending)))
	require.NoError(t, publisher.Publish(ctx, snapshot("WC_A", enums.PaymentStatusPending)))
	require.NoError(t, publisher.Publish(ctx, snapshot("WC_A", enums.PaymentStatusCompleted)))
	assert.Equal(t, []string{"pt:payment_status:WC_A", "pt:payment_status:WC_A"}, client.published)

	client.publishErr = errors.New("connection reset")
	assert.Error(t, publisher.Publish(ctx, snapshot("WC_B", enums.PaymentStatusFailed)))
	assert.Equal(t, 1, client.cleared)

	client.publishErr = nil
	require.NoError(t, publisher.Publish(ctx, snapshot("WC_B", enums.PaymentStatusFailed)))
	assert.Len(t, client.published, 3)
}

func TestMemoryFeed(t *testing.T) {
	feed := NewMemoryFeed()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var a, b collector
	subA, err := feed.Subscribe(ctx, "WC_A", a.handle)
	require.NoError(t, err)
	_, err = feed.Subscribe(ctx, "WC_B", b.handle)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.Subscribers("WC_A"))

	require.NoError(t, feed.Publish(ctx, snapshot("WC_A", enums.PaymentStatusCompleted)))
	assert.Equal(t, 1, a.len())
	assert.Equal(t, 0, b.len())

	require.NoError(t, subA.Unsubscribe())
	require.NoError(t, subA.Unsubscribe())
	assert.Equal(t, 0, feed.Subscribers("WC_A"))
	require.NoError(t, feed.Publish(ctx, snapshot("WC_A", enums.PaymentStatusCompleted)))
	assert.Equal(t, 1, a.len())

	cancel()
	require.Eventually(t, func() bool { return feed.Subscribers("WC_B") == 0 }, time.Second, 5*time.Millisecond)
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "pt:payment_status:WC_1", ChannelName("pt:payment_status", "WC_1"))
	assert.Equal(t, "pt:payment_status:WC_1", ChannelName(" pt:payment_status: ", "WC_1"))
}
