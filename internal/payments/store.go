package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/paytrack/pkg/db/models"
	"github.com/angelmondragon/paytrack/pkg/enums"
	pkgerrors "github.com/angelmondragon/paytrack/pkg/errors"
	"github.com/angelmondragon/paytrack/pkg/fees"
	"github.com/angelmondragon/paytrack/pkg/logger"
)

// Publisher fans a status snapshot out to push subscribers.
type Publisher interface {
	Publish(ctx context.Context, status Status) error
}

type transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StoreParams wires the payment status store.
type StoreParams struct {
	Repo      Repository
	Tx        transactor
	Publisher Publisher
	Validator *Validator
	Fees      *fees.Calculator
	Currency  string
	Logger    *logger.Logger
	Now       func() time.Time
}

// Store is the system of record for payment status. Writes are published so
// trackers can observe them without waiting for their next poll.
type Store struct {
	repo      Repository
	tx        transactor
	publisher Publisher
	validator *Validator
	fees      *fees.Calculator
	currency  string
	logg      *logger.Logger
	now       func() time.Time
}

// NewStore validates dependencies and builds a Store.
func NewStore(params StoreParams) (*Store, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if params.Validator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment validator required")
	}
	if params.Fees == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fee calculator required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		repo:      params.Repo,
		tx:        params.Tx,
		publisher: params.Publisher,
		validator: params.Validator,
		fees:      params.Fees,
		currency:  strings.ToUpper(strings.TrimSpace(params.Currency)),
		logg:      logg,
		now:       now,
	}, nil
}

// Get performs a point lookup by reference.
func (s *Store) Get(ctx context.Context, reference string) (Status, error) {
	reference = NormalizeReference(reference)
	if reference == "" {
		return Status{}, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	payment, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return Status{}, err
	}
	return StatusFromModel(*payment), nil
}

// Initiate validates req, records a pending payment under a fresh reference and
// returns its snapshot with the fee split. Nothing is written when validation fails.
func (s *Store) Initiate(ctx context.Context, req PaymentRequest) (Status, fees.Breakdown, error) {
	if req.Currency == "" {
		req.Currency = s.currency
	}
	if result := s.validator.Validate(req); !result.Valid {
		return Status{}, fees.Breakdown{}, result.Err()
	}
	breakdown, err := s.fees.Quote(req.Amount)
	if err != nil {
		return Status{}, fees.Breakdown{}, err
	}

	now := s.now().UTC()
	payment := &models.Payment{
		ID:          uuid.New(),
		Reference:   NewReference(now),
		Status:      enums.PaymentStatusPending,
		Amount:      breakdown.GrossAmount,
		Currency:    req.Currency,
		PlatformFee: breakdown.PlatformFee,
		NetAmount:   breakdown.NetAmount,
		Method:      req.PaymentMethod,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.PaymentMethod == enums.PaymentMethodMobileMoney {
		provider := strings.ToLower(strings.TrimSpace(req.Provider))
		payment.Provider = &provider
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return Status{}, fees.Breakdown{}, err
	}

	status := StatusFromModel(*payment)
	ctx = s.logg.WithReference(ctx, status.Reference)
	s.logg.Info(ctx, "payment initiated")
	s.publish(ctx, status)
	return status, breakdown, nil
}

// UpdateStatus moves a pending payment to a terminal status. Repeating the
// same terminal status is accepted without side effects; any other change to a
// terminal payment is a state conflict.
func (s *Store) UpdateStatus(ctx context.Context, reference string, change StatusChange) (Status, error) {
	reference = NormalizeReference(reference)
	if !change.Status.IsTerminal() {
		return Status{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("status %q is not terminal", change.Status))
	}

	now := s.now().UTC()
	var (
		current models.Payment
		updated bool
	)
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		updated, err = repo.TransitionFromPending(ctx, reference, change, now)
		if err != nil {
			return err
		}
		payment, err := repo.FindByReference(ctx, reference)
		if err != nil {
			return err
		}
		current = *payment
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			return Status{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		return Status{}, err
	}

	status := StatusFromModel(current)
	if !updated {
		if current.Status == change.Status {
			return status, nil
		}
		return status, pkgerrors.New(pkgerrors.CodeStateConflict, "payment already finalized").WithDetails(map[string]any{
			"reference": reference,
			"current":   current.Status,
			"requested": change.Status,
		})
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"payment_reference": reference, "status": status.Status})
	s.logg.Info(ctx, "payment status finalized")
	s.publish(ctx, status)
	return status, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.tx == nil {
		return fn(nil)
	}
	return s.tx.WithTx(ctx, fn)
}

// publish is best effort: trackers fall back to polling when an event is lost.
func (s *Store) publish(ctx context.Context, status Status) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, status); err != nil && !errors.Is(err, context.Canceled) {
		s.logg.Error(ctx, "failed to publish payment status", err)
	}
}
