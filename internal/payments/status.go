package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/paytrack/pkg/db/models"
	"github.com/angelmondragon/paytrack/pkg/enums"
)

// Status is a point-in-time snapshot of a payment, as returned by lookups and
// carried by push events.
type Status struct {
	Reference       string              `json:"reference"`
	Status          enums.PaymentStatus `json:"status"`
	Amount          decimal.Decimal     `json:"amount"`
	Currency        string              `json:"currency"`
	TransactionID   *string             `json:"transaction_id,omitempty"`
	GatewayResponse *string             `json:"gateway_response,omitempty"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// StatusFromModel maps a persisted payment into its snapshot.
func StatusFromModel(p models.Payment) Status {
	return Status{
		Reference:       p.Reference,
		Status:          p.Status,
		Amount:          p.Amount,
		Currency:        p.Currency,
		TransactionID:   p.TransactionID,
		GatewayResponse: p.GatewayResponse,
		PaidAt:          p.PaidAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
