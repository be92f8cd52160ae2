// Package fees computes platform fee breakdowns for payment amounts.
package fees

import (
	"errors"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/paytrack/pkg/errors"
)

// Places is the number of decimal places fees are rounded to.
const Places = 2

var (
	ErrInvalidAmount     = errors.New("gross amount must be positive")
	ErrInvalidPercentage = errors.New("fee percentage must be within [0,100]")

	hundred = decimal.NewFromInt(100)
)

// Breakdown splits a gross amount into the platform fee and the payee's share.
// PlatformFee + NetAmount always equals GrossAmount exactly.
type Breakdown struct {
	GrossAmount   decimal.Decimal `json:"gross_amount"`
	FeePercentage decimal.Decimal `json:"fee_percentage"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	NetAmount     decimal.Decimal `json:"net_amount"`
}

// Calculate rounds the fee half-up to two places and derives the net amount
// by subtraction, never by independent rounding.
func Calculate(gross, percentage decimal.Decimal) (Breakdown, error) {
	if !gross.IsPositive() {
		return Breakdown{}, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidAmount, "invalid amount").
			WithDetails(map[string]any{"gross_amount": gross.String()})
	}
	if err := ValidatePercentage(percentage); err != nil {
		return Breakdown{}, err
	}

	fee := gross.Mul(percentage).Div(hundred).Round(Places)
	return Breakdown{
		GrossAmount:   gross,
		FeePercentage: percentage,
		PlatformFee:   fee,
		NetAmount:     gross.Sub(fee),
	}, nil
}

// ValidatePercentage reports whether percentage is usable as a fee rate.
func ValidatePercentage(percentage decimal.Decimal) error {
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidPercentage, "invalid percentage").
			WithDetails(map[string]any{"fee_percentage": percentage.String()})
	}
	return nil
}

// Calculator applies a fixed, pre-validated fee percentage.
type Calculator struct {
	percentage decimal.Decimal
}

// NewCalculator validates percentage once so Quote only checks the amount.
func NewCalculator(percentage decimal.Decimal) (*Calculator, error) {
	if err := ValidatePercentage(percentage); err != nil {
		return nil, err
	}
	return &Calculator{percentage: percentage}, nil
}

// Percentage returns the configured fee rate.
func (c *Calculator) Percentage() decimal.Decimal {
	return c.percentage
}

// Quote returns the breakdown for gross at the configured rate.
func (c *Calculator) Quote(gross decimal.Decimal) (Breakdown, error) {
	return Calculate(gross, c.percentage)
}
