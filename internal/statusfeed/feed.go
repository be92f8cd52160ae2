// Package statusfeed delivers payment status snapshots to subscribers as they
// are written, filtered to a single reference per subscription.
package statusfeed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/paytrack/internal/payments"
)

// Handler receives each snapshot pushed for the subscribed reference.
type Handler func(payments.Status)

// Subscription is an open push channel. Unsubscribe is safe to call more than once.
type Subscription interface {
	Unsubscribe() error
}

// ChannelName is the pub/sub channel carrying snapshots for reference.
func ChannelName(prefix, reference string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ":")
	return fmt.Sprintf("%s:%s", prefix, reference)
}

func encode(status payments.Status) ([]byte, error) {
	return json.Marshal(status)
}

func decode(payload string) (payments.Status, error) {
	var status payments.Status
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		return payments.Status{}, err
	}
	if !status.Status.IsValid() {
		return payments.Status{}, fmt.Errorf("unknown payment status %q", status.Status)
	}
	return status, nil
}

type subscriptionFunc func() error

func (f subscriptionFunc) Unsubscribe() error { return f() }
