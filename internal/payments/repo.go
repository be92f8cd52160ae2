package payments

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/paytrack/pkg/db"
	"github.com/angelmondragon/paytrack/pkg/db/models"
	"github.com/angelmondragon/paytrack/pkg/enums"
	pkgerrors "github.com/angelmondragon/paytrack/pkg/errors"
)

// Repository exposes persistence helpers for payment status records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	TransitionFromPending(ctx context.Context, reference string, change StatusChange, now time.Time) (bool, error)
}

// StatusChange describes a terminal update reported by the gateway.
type StatusChange struct {
	Status          enums.PaymentStatus
	TransactionID   *string
	GatewayResponse *string
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repositoryImpl{db: conn}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "payment reference already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return nil
}

func (r *repositoryImpl) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "Payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Failed to fetch payment status")
	}
	return &payment, nil
}

// TransitionFromPending applies change only while the row is still pending and
// reports whether a row was updated. The status guard in the WHERE clause keeps
// terminal records final without a row lock.
func (r *repositoryImpl) TransitionFromPending(ctx context.Context, reference string, change StatusChange, now time.Time) (bool, error) {
	updates := map[string]any{
		"status":     change.Status,
		"updated_at": now,
	}
	if change.TransactionID != nil {
		updates["transaction_id"] = *change.TransactionID
	}
	if change.GatewayResponse != nil {
		updates["gateway_response"] = *change.GatewayResponse
	}
	if change.Status == enums.PaymentStatusCompleted {
		updates["paid_at"] = now
	}

	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("reference = ? AND status = ?", reference, enums.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update payment status")
	}
	return res.RowsAffected == 1, nil
}
