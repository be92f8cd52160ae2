package payments

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/paytrack/pkg/enums"
	pkgerrors "github.com/angelmondragon/paytrack/pkg/errors"
	"github.com/angelmondragon/paytrack/pkg/fees"
)

// ErrorKind names one reason a payment request was rejected.
type ErrorKind string

const (
	ErrAmountOutOfRange   ErrorKind = "AmountOutOfRange"
	ErrInvalidEmail       ErrorKind = "InvalidEmail"
	ErrInvalidName        ErrorKind = "InvalidName"
	ErrMissingDescription ErrorKind = "MissingDescription"
	ErrInvalidPhone       ErrorKind = "InvalidPhone"
	ErrMissingProvider    ErrorKind = "MissingProvider"
	ErrInvalidCurrency    ErrorKind = "InvalidCurrency"
	ErrInvalidMethod      ErrorKind = "InvalidPaymentMethod"
	ErrInvalidFee         ErrorKind = "InvalidFee"
)

var fieldByKind = map[ErrorKind]string{
	ErrAmountOutOfRange:   "amount",
	ErrInvalidEmail:       "email",
	ErrInvalidName:        "name",
	ErrMissingDescription: "description",
	ErrInvalidPhone:       "phone",
	ErrMissingProvider:    "provider",
	ErrInvalidCurrency:    "currency",
	ErrInvalidMethod:      "payment_method",
	ErrInvalidFee:         "amount",
}

const (
	minNameLength        = 2
	minDescriptionLength = 5
)

// PaymentRequest is a prospective payment awaiting submission.
type PaymentRequest struct {
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency,omitempty"`
	Email         string              `json:"email"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Phone         string              `json:"phone,omitempty"`
	Provider      string              `json:"provider,omitempty"`
}

// ValidatorConfig carries the bounds and locale the validator checks against.
type ValidatorConfig struct {
	MinAmount     decimal.Decimal
	MaxAmount     decimal.Decimal
	CountryCode   string
	FeePercentage decimal.Decimal
}

// Result lists every problem found with a request.
type Result struct {
	Valid  bool        `json:"valid"`
	Errors []ErrorKind `json:"errors"`
}

// Has reports whether kind is among the result's errors.
func (r Result) Has(kind ErrorKind) bool {
	for _, e := range r.Errors {
		if e == kind {
			return true
		}
	}
	return false
}

// Err converts an invalid result into a VALIDATION_ERROR carrying per-field details.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	fields := map[string][]string{}
	for _, kind := range r.Errors {
		field := fieldByKind[kind]
		fields[field] = append(fields[field], string(kind))
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "payment request invalid").WithDetails(map[string]any{
		"errors": r.Errors,
		"fields": fields,
	})
}

// Validator checks payment requests before anything is sent to the gateway.
type Validator struct {
	cfg      ValidatorConfig
	phone    *regexp.Regexp
	validate *validator.Validate
}

// NewValidator fails when the country has no mobile pattern or the bounds are inconsistent.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	phone, ok := MobilePattern(cfg.CountryCode)
	if !ok {
		return nil, fmt.Errorf("no mobile number pattern registered for country %q", cfg.CountryCode)
	}
	if !cfg.MinAmount.IsPositive() || cfg.MinAmount.GreaterThan(cfg.MaxAmount) {
		return nil, fmt.Errorf("invalid amount bounds [%s, %s]", cfg.MinAmount, cfg.MaxAmount)
	}
	if err := fees.ValidatePercentage(cfg.FeePercentage); err != nil {
		return nil, err
	}
	return &Validator{cfg: cfg, phone: phone, validate: validator.New()}, nil
}

// Validate runs every check and returns all failures in one pass.
func (v *Validator) Validate(req PaymentRequest) Result {
	var errs []ErrorKind

	inRange := req.Amount.GreaterThanOrEqual(v.cfg.MinAmount) && req.Amount.LessThanOrEqual(v.cfg.MaxAmount)
	if !inRange {
		errs = append(errs, ErrAmountOutOfRange)
	} else if breakdown, err := fees.Calculate(req.Amount, v.cfg.FeePercentage); err != nil || !breakdown.NetAmount.IsPositive() {
		errs = append(errs, ErrInvalidFee)
	}

	if req.Currency != "" && v.validate.Var(req.Currency, "len=3,alpha,uppercase") != nil {
		errs = append(errs, ErrInvalidCurrency)
	}
	if v.validate.Var(strings.TrimSpace(req.Email), "required,email") != nil {
		errs = append(errs, ErrInvalidEmail)
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Name)) < minNameLength {
		errs = append(errs, ErrInvalidName)
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Description)) < minDescriptionLength {
		errs = append(errs, ErrMissingDescription)
	}

	if req.PaymentMethod != "" && !req.PaymentMethod.IsValid() {
		errs = append(errs, ErrInvalidMethod)
	}
	if req.PaymentMethod == enums.PaymentMethodMobileMoney {
		if !v.phone.MatchString(NormalizePhone(req.Phone)) {
			errs = append(errs, ErrInvalidPhone)
		}
		if _, err := enums.ParseMobileMoneyProvider(req.Provider); err != nil {
			errs = append(errs, ErrMissingProvider)
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}
