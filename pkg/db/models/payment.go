package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/paytrack/pkg/enums"
)

// Payment is the persisted status record for one payment attempt, keyed by its reference.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Reference       string              `gorm:"column:reference;not null;uniqueIndex"`
	Status          enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Amount          decimal.Decimal     `gorm:"column:amount;type:numeric(14,2);not null"`
	Currency        string              `gorm:"column:currency;type:char(3);not null"`
	PlatformFee     decimal.Decimal     `gorm:"column:platform_fee;type:numeric(14,2);not null"`
	NetAmount       decimal.Decimal     `gorm:"column:net_amount;type:numeric(14,2);not null"`
	Method          enums.PaymentMethod `gorm:"column:method;not null"`
	Provider        *string             `gorm:"column:provider"`
	TransactionID   *string             `gorm:"column:transaction_id"`
	GatewayResponse *string             `gorm:"column:gateway_response"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }
