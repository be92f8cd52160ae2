package payments

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/paytrack/pkg/db"
	"github.com/angelmondragon/paytrack/pkg/db/models"
	"github.com/angelmondragon/paytrack/pkg/enums"
	pkgerrors "github.com/angelmondragon/paytrack/pkg/errors"
	"github.com/angelmondragon/paytrack/pkg/fees"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(&models.Payment{}))
	return conn
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []Status
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, status Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, status)
	return p.err
}

func (p *recordingPublisher) statuses() []enums.PaymentStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]enums.PaymentStatus, 0, len(p.published))
	for _, s := range p.published {
		out = append(out, s.Status)
	}
	return out
}

func newTestStore(t *testing.T, publisher Publisher) (*Store, *gorm.DB) {
	t.Helper()
	conn := setupPaymentsTestDB(t)
	calc, err := fees.NewCalculator(decimal.NewFromInt(2))
	require.NoError(t, err)
	store, err := NewStore(StoreParams{
		Repo:      NewRepository(conn),
		Tx:        db.Wrap(conn),
		Publisher: publisher,
		Validator: newTestValidator(t),
		Fees:      calc,
		Currency:  "zmw",
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	})
	require.NoError(t, err)
	return store, conn
}

func TestStoreInitiatePersistsPendingPayment(t *testing.T) {
	publisher := &recordingPublisher{}
	store, conn := newTestStore(t, publisher)
	ctx := context.Background()

	req := validRequest()
	req.Currency = ""
	req.PaymentMethod = enums.PaymentMethodMobileMoney
	req.Phone = "0961234567"
	req.Provider = "MTN"

	status, breakdown, err := store.Initiate(ctx, req)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^WC_1700000000_[0-9A-Z]{6}$`), status.Reference)
	assert.Equal(t, enums.PaymentStatusPending, status.Status)
	assert.Equal(t, "ZMW", status.Currency)
	assert.Equal(t, "1.00", breakdown.PlatformFee.StringFixed(2))
	assert.Equal(t, "49.00", breakdown.NetAmount.StringFixed(2))
	assert.Equal(t, []enums.PaymentStatus{enums.PaymentStatusPending}, publisher.statuses())

	var row models.Payment
	require.NoError(t, conn.Where("reference = ?", status.Reference).First(&row).Error)
	require.NotNil(t, row.Provider)
	assert.Equal(t, "mtn", *row.Provider)
	assert.True(t, row.PlatformFee.Add(row.NetAmount).Equal(row.Amount))
}

func TestStoreInitiateRejectsInvalidRequestWithoutWriting(t *testing.T) {
	publisher := &recordingPublisher{}
	store, conn := newTestStore(t, publisher)

	req := validRequest()
	req.Amount = decimal.NewFromInt(1)
	req.Email = "nope"

	_, _, err := store.Initiate(context.Background(), req)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, conn.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, publisher.statuses())
}

func TestStoreGet(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	created, _, err := store.Initiate(ctx, validRequest())
	require.NoError(t, err)

	got, err := store.Get(ctx, " "+created.Reference+" ")
	require.NoError(t, err)
	assert.Equal(t, created.Reference, got.Reference)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(50)))

	_, err = store.Get(ctx, "WC_UNKNOWN")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "expected not found, got %v", err)

	_, err = store.Get(ctx, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStoreUpdateStatusFinality(t *testing.T) {
	publisher := &recordingPublisher{}
	store, _ := newTestStore(t, publisher)
	ctx := context.Background()

	created, _, err := store.Initiate(ctx, validRequest())
	require.NoError(t, err)

	txID := "TX-991"
	done, err := store.UpdateStatus(ctx, created.Reference, StatusChange{Status: enums.PaymentStatusCompleted, TransactionID: &txID})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, done.Status)
	require.NotNil(t, done.PaidAt)
	require.NotNil(t, done.TransactionID)
	assert.Equal(t, txID, *done.TransactionID)

	again, err := store.UpdateStatus(ctx, created.Reference, StatusChange{Status: enums.PaymentStatusCompleted})
	require.NoError(t, err, "repeating the terminal status is idempotent")
	assert.Equal(t, enums.PaymentStatusCompleted, again.Status)

	_, err = store.UpdateStatus(ctx, created.Reference, StatusChange{Status: enums.PaymentStatusFailed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "expected conflict, got %v", err)

	_, err = store.UpdateStatus(ctx, created.Reference, StatusChange{Status: enums.PaymentStatusPending})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = store.UpdateStatus(ctx, "WC_UNKNOWN", StatusChange{Status: enums.PaymentStatusFailed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "expected not found, got %v", err)

	assert.Equal(t, []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusCompleted}, publisher.statuses())
}

func TestStoreUpdateStatusSurvivesPublishFailure(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("redis down")}
	store, _ := newTestStore(t, publisher)
	ctx := context.Background()

	created, _, err := store.Initiate(ctx, validRequest())
	require.NoError(t, err)

	got, err := store.UpdateStatus(ctx, created.Reference, StatusChange{Status: enums.PaymentStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCancelled, got.Status)
	assert.Nil(t, got.PaidAt)
}

func TestNewReferenceFormat(t *testing.T) {
	ref := NewReference(time.Unix(1700000000, 0))
	assert.Regexp(t, regexp.MustCompile(`^WC_1700000000_[0-9A-Z]{6}$`), ref)
	assert.NotEqual(t, ref, NewReference(time.Unix(1700000000, 0)))
}
