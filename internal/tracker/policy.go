package tracker

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/paytrack/pkg/enums"
)

// Severity tells the caller how to present a message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Message is a user-facing notification produced by the policy.
type Message struct {
	Reference string              `json:"reference"`
	Status    enums.PaymentStatus `json:"status"`
	Severity  Severity            `json:"severity"`
	Title     string              `json:"title"`
	Text      string              `json:"text"`
}

// Notifier presents messages to the caller.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message)

func (f NotifierFunc) Notify(ctx context.Context, msg Message) { f(ctx, msg) }

type template struct {
	severity Severity
	title    string
	text     string
}

var transitionTemplates = map[enums.PaymentStatus]template{
	enums.PaymentStatusPending: {
		severity: SeverityInfo,
		title:    "Payment pending",
		text:     "Your payment of %s is awaiting confirmation.",
	},
	enums.PaymentStatusCompleted: {
		severity: SeveritySuccess,
		title:    "Payment successful",
		text:     "Your payment of %s was completed.",
	},
	enums.PaymentStatusFailed: {
		severity: SeverityError,
		title:    "Payment failed",
		text:     "Your payment of %s could not be processed.",
	},
	enums.PaymentStatusCancelled: {
		severity: SeverityError,
		title:    "Payment cancelled",
		text:     "Your payment of %s was cancelled.",
	},
}

// Policy decides which status transitions are worth telling the caller about.
type Policy struct{}

// OnTransition returns the message for prev -> next. The first observation of
// a session (prev == nil) and unchanged statuses produce nothing.
func (Policy) OnTransition(prev *enums.PaymentStatus, next enums.PaymentStatus, amount decimal.Decimal, currency string) (Message, bool) {
	if prev == nil || *prev == next {
		return Message{}, false
	}
	tmpl, ok := transitionTemplates[next]
	if !ok {
		return Message{}, false
	}
	return Message{
		Status:   next,
		Severity: tmpl.severity,
		Title:    tmpl.title,
		Text:     fmt.Sprintf(tmpl.text, formatAmount(amount, currency)),
	}, true
}

// OnTimeout is the message for a session that gave up waiting on a pending payment.
func (Policy) OnTimeout(amount decimal.Decimal, currency string) Message {
	return Message{
		Status:   enums.PaymentStatusPending,
		Severity: SeverityError,
		Title:    "Payment still pending",
		Text:     fmt.Sprintf("Your payment of %s has not been confirmed yet. Check again later.", formatAmount(amount, currency)),
	}
}

func formatAmount(amount decimal.Decimal, currency string) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	return currency + " " + amount.StringFixed(2)
}
