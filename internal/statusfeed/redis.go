package statusfeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/paytrack/internal/payments"
	"github.com/angelmondragon/paytrack/pkg/logger"
	pkgredis "github.com/angelmondragon/paytrack/pkg/redis"
)

const publishDedupeTTL = 24 * time.Hour

type streamSubscriber interface {
	Subscribe(ctx context.Context, channel string) (pkgredis.MessageStream, error)
}

type channelPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	MarkPublished(ctx context.Context, reference, status string, ttl time.Duration) (bool, error)
	ClearPublished(ctx context.Context, reference, status string) error
}

// RedisFeed subscribes to per-reference Redis channels.
type RedisFeed struct {
	client streamSubscriber
	prefix string
	logg   *logger.Logger
}

// NewRedisFeed builds a feed reading channels named prefix:<reference>.
func NewRedisFeed(client streamSubscriber, prefix string, logg *logger.Logger) (*RedisFeed, error) {
	if client == nil {
		return nil, errors.New("redis subscriber required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisFeed{client: client, prefix: prefix, logg: logg}, nil
}

// Subscribe opens the push channel for reference. Messages that fail to decode
// or name another reference are logged and dropped; they never reach onUpdate.
// The subscription ends on Unsubscribe, on ctx cancellation, or when the
// underlying stream closes.
func (f *RedisFeed) Subscribe(ctx context.Context, reference string, onUpdate Handler) (Subscription, error) {
	channel := ChannelName(f.prefix, reference)
	stream, err := f.client.Subscribe(ctx, channel)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	var (
		once     sync.Once
		closeErr error
	)
	release := func() error {
		once.Do(func() {
			cancel()
			closeErr = stream.Close()
		})
		return closeErr
	}

	logCtx := f.logg.WithFields(ctx, map[string]any{"payment_reference": reference, "channel": channel})
	go func() {
		defer func() { _ = release() }()
		messages := stream.Messages()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				status, err := decode(msg.Payload)
				if err != nil {
					f.logg.Error(logCtx, "dropping undecodable status event", err)
					continue
				}
				if status.Reference != reference {
					f.logg.Warn(f.logg.WithField(logCtx, "event_reference", status.Reference), "dropping status event for another reference")
					continue
				}
				if subCtx.Err() != nil {
					return
				}
				onUpdate(status)
			}
		}
	}()

	return subscriptionFunc(release), nil
}

// RedisPublisher publishes snapshots onto the per-reference channels.
type RedisPublisher struct {
	client channelPublisher
	prefix string
}

// NewRedisPublisher builds a publisher writing channels named prefix:<reference>.
func NewRedisPublisher(client channelPublisher, prefix string) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("redis publisher required")
	}
	return &RedisPublisher{client: client, prefix: prefix}, nil
}

// Publish emits status once per (reference, status) pair across writers. A
// failed publish clears the marker so a later retry can emit it.
func (p *RedisPublisher) Publish(ctx context.Context, status payments.Status) error {
	payload, err := encode(status)
	if err != nil {
		return err
	}
	first, err := p.client.MarkPublished(ctx, status.Reference, status.Status.String(), publishDedupeTTL)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}
	if err := p.client.Publish(ctx, ChannelName(p.prefix, status.Reference), payload); err != nil {
		if clearErr := p.client.ClearPublished(ctx, status.Reference, status.Status.String()); clearErr != nil {
			return multierr.Append(err, clearErr)
		}
		return err
	}
	return nil
}
