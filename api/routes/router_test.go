package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/paytrack/internal/payments"
	"github.com/angelmondragon/paytrack/pkg/config"
	"github.com/angelmondragon/paytrack/pkg/enums"
	pkgerrors "github.com/angelmondragon/paytrack/pkg/errors"
	"github.com/angelmondragon/paytrack/pkg/fees"
	"github.com/angelmondragon/paytrack/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubPayments struct{}

func (stubPayments) Get(_ context.Context, reference string) (payments.Status, error) {
	if reference != "WC_1" {
		return payments.Status{}, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payments.Status{Reference: reference, Status: enums.PaymentStatusPending, Amount: decimal.NewFromInt(50), Currency: "ZMW"}, nil
}

func (stubPayments) Initiate(context.Context, payments.PaymentRequest) (payments.Status, fees.Breakdown, error) {
	return payments.Status{}, fees.Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "payment request invalid")
}

func (stubPayments) UpdateStatus(context.Context, string, payments.StatusChange) (payments.Status, error) {
	return payments.Status{}, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		API: config.APIConfig{
			AllowedOrigins:       []string{"http://localhost:3000"},
			LookupRateWindow:     time.Minute,
			LookupIPLimit:        10,
			LookupReferenceLimit: 10,
		},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *prometheus.Registry) {
	t.Helper()
	calc, err := fees.NewCalculator(decimal.NewFromInt(2))
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	validator, err := payments.NewValidator(payments.ValidatorConfig{
		MinAmount:     decimal.NewFromInt(5),
		MaxAmount:     decimal.NewFromInt(1000),
		CountryCode:   "ZM",
		FeePercentage: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	reg := prometheus.NewRegistry()
	return NewRouter(testConfig(), logger.Nop(), Dependencies{
		DB:        stubPinger{},
		Payments:  stubPayments{},
		Validator: validator,
		Fees:      calc,
		Registry:  reg,
	}), reg
}

func TestRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"liveness", http.MethodGet, "/health/live", "", http.StatusOK},
		{"readiness", http.MethodGet, "/health/ready", "", http.StatusOK},
		{"status lookup", http.MethodGet, "/api/v1/payments/WC_1", "", http.StatusOK},
		{"unknown reference", http.MethodGet, "/api/v1/payments/WC_2", "", http.StatusNotFound},
		{"quote", http.MethodPost, "/api/v1/payments/quote", `{"amount":"10"}`, http.StatusOK},
		{"validate", http.MethodPost, "/api/v1/payments/validate", `{"amount":"10"}`, http.StatusOK},
		{"initiate without redis", http.MethodPost, "/api/v1/payments", `{"amount":"10"}`, http.StatusBadRequest},
		{"status update", http.MethodPost, "/api/v1/payments/WC_1/status", `{"status":"completed"}`, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/v1/orders", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("%s %s: expected %d, got %d: %s", tc.method, tc.path, tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMetricsEndpointExposesRouteCounters(t *testing.T) {
	router, _ := newTestRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/payments/WC_1", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/api/v1/payments/{reference}"`) {
		t.Fatalf("expected templated route label, got:\n%s", rec.Body.String())
	}
}

func TestResponsesCarryRequestID(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
}
