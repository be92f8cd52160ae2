package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/paytrack/api/responses"
	"github.com/angelmondragon/paytrack/api/validators"
	"github.com/angelmondragon/paytrack/internal/payments"
	"github.com/angelmondragon/paytrack/pkg/enums"
	pkgerrors "github.com/angelmondragon/paytrack/pkg/errors"
	"github.com/angelmondragon/paytrack/pkg/fees"
	"github.com/angelmondragon/paytrack/pkg/logger"
)

const maxGatewayResponseLength = 2048

// PaymentsService is the store surface the payment routes need.
type PaymentsService interface {
	Get(ctx context.Context, reference string) (payments.Status, error)
	Initiate(ctx context.Context, req payments.PaymentRequest) (payments.Status, fees.Breakdown, error)
	UpdateStatus(ctx context.Context, reference string, change payments.StatusChange) (payments.Status, error)
}

type feeQuoter interface {
	Quote(gross decimal.Decimal) (fees.Breakdown, error)
}

type requestValidator interface {
	Validate(req payments.PaymentRequest) payments.Result
}

// GetPaymentStatus is the point lookup used by trackers polling over HTTP.
func GetPaymentStatus(svc PaymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference, err := validators.ReferenceParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.Get(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

type quoteBody struct {
	Amount decimal.Decimal `json:"amount"`
}

// QuoteFee returns the platform fee split for an amount.
func QuoteFee(quoter feeQuoter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body quoteBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		breakdown, err := quoter.Quote(body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, breakdown)
	}
}

// ValidatePayment runs the pre-submission checks and always answers 200 with
// the full result so clients can render every problem at once.
func ValidatePayment(v requestValidator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body payments.PaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result := v.Validate(body)
		if result.Errors == nil {
			result.Errors = []payments.ErrorKind{}
		}
		responses.WriteSuccess(w, result)
	}
}

type initiateResponse struct {
	Payment payments.Status `json:"payment"`
	Fees    fees.Breakdown  `json:"fees"`
}

// InitiatePayment records a new pending payment.
func InitiatePayment(svc PaymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body payments.PaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, breakdown, err := svc.Initiate(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Location", "/api/v1/payments/"+status.Reference)
		responses.WriteSuccessStatus(w, http.StatusCreated, initiateResponse{Payment: status, Fees: breakdown})
	}
}

type statusUpdateBody struct {
	Status          string `json:"status" validate:"required,terminal_status"`
	TransactionID   string `json:"transaction_id,omitempty" validate:"max=128"`
	GatewayResponse string `json:"gateway_response,omitempty"`
}

// UpdatePaymentStatus applies a gateway's terminal outcome for a reference.
func UpdatePaymentStatus(svc PaymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reference, err := validators.ReferenceParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body statusUpdateBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next, err := enums.ParsePaymentStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		change := payments.StatusChange{Status: next}
		if txID := strings.TrimSpace(body.TransactionID); txID != "" {
			change.TransactionID = &txID
		}
		if gw := validators.SanitizeString(body.GatewayResponse, maxGatewayResponseLength); gw != "" {
			change.GatewayResponse = &gw
		}

		status, err := svc.UpdateStatus(r.Context(), reference, change)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
