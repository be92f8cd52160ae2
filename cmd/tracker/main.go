package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/paytrack/internal/payments"
	"github.com/angelmondragon/paytrack/internal/statusfeed"
	"github.com/angelmondragon/paytrack/internal/tracker"
	"github.com/angelmondragon/paytrack/pkg/config"
	"github.com/angelmondragon/paytrack/pkg/db"
	"github.com/angelmondragon/paytrack/pkg/fees"
	"github.com/angelmondragon/paytrack/pkg/logger"
	"github.com/angelmondragon/paytrack/pkg/metrics"
	"github.com/angelmondragon/paytrack/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "tracker"})

	_ = godotenv.Load()

	reference := flag.String("reference", "", "payment reference to track")
	sourceKind := flag.String("source", "http", "status source: http|db")
	flag.Parse()

	if *reference == "" {
		fmt.Fprintln(os.Stderr, "missing -reference")
		os.Exit(2)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "tracker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"source": *sourceKind,
	})

	var source tracker.Source
	switch *sourceKind {
	case "http":
		httpSource, err := payments.NewHTTPSource(cfg.Payments.APIBaseURL, nil, cfg.Payments.HTTPTimeout)
		requireResource(ctx, logg, "http status source", err)
		source = httpSource
	case "db":
		dbClient, err := db.New(ctx, cfg.DB, logg)
		requireResource(ctx, logg, "database", err)
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(ctx, "error closing database", err)
			}
		}()
		source = newStoreSource(ctx, logg, cfg, dbClient)
	default:
		fmt.Fprintln(os.Stderr, "unknown -source value:", *sourceKind)
		os.Exit(2)
	}

	var feed tracker.Feed
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
		redisFeed, err := statusfeed.NewRedisFeed(redisClient, cfg.Feed.ChannelPrefix, logg)
		requireResource(ctx, logg, "status feed", err)
		feed = redisFeed
	} else {
		logg.Warn(ctx, "redis not configured, tracking by polling only")
	}

	done := make(chan struct{}, 1)
	notifier := tracker.NotifierFunc(func(ctx context.Context, msg tracker.Message) {
		fmt.Printf("[%s] %s: %s\n", msg.Severity, msg.Title, msg.Text)
		if msg.Severity != tracker.SeverityInfo {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})

	t, err := tracker.New(tracker.Params{
		Source:         source,
		Feed:           feed,
		Notifier:       notifier,
		Logger:         logg,
		Metrics:        metrics.NewTrackerMetrics(prometheus.NewRegistry()),
		PollInterval:   cfg.Payments.PollInterval(),
		PendingTimeout: cfg.Payments.PendingTimeout(),
	})
	requireResource(ctx, logg, "tracker", err)
	defer func() { _ = t.Close() }()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := t.StartTracking(runCtx, *reference); err != nil {
		logg.Error(ctx, "tracking failed to start", err)
		os.Exit(1)
	}

	if t.Phase() == tracker.PhasePending {
		fmt.Printf("tracking %s, waiting for confirmation\n", *reference)
		select {
		case <-done:
		case <-runCtx.Done():
			t.StopTracking()
		}
	}

	status, ok := t.Status()
	if !ok {
		os.Exit(1)
	}
	fmt.Printf("%s: %s %s %s\n", status.Reference, status.Status, status.Currency, status.Amount.StringFixed(2))
	if t.Err() != nil || !status.Status.IsTerminal() {
		os.Exit(1)
	}
}

// newStoreSource reads statuses straight from the database for operators
// running next to it.
func newStoreSource(ctx context.Context, logg *logger.Logger, cfg *config.Config, dbClient *db.Client) *payments.Store {
	calculator, err := fees.NewCalculator(cfg.Payments.PlatformFeePercentage)
	requireResource(ctx, logg, "fee calculator", err)
	validator, err := payments.NewValidator(payments.ValidatorConfig{
		MinAmount:     cfg.Payments.MinPaymentAmount,
		MaxAmount:     cfg.Payments.MaxPaymentAmount,
		CountryCode:   cfg.Payments.CountryCode,
		FeePercentage: cfg.Payments.PlatformFeePercentage,
	})
	requireResource(ctx, logg, "payment validator", err)
	store, err := payments.NewStore(payments.StoreParams{
		Repo:      payments.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Validator: validator,
		Fees:      calculator,
		Currency:  cfg.Payments.CurrencyCode,
		Logger:    logg,
	})
	requireResource(ctx, logg, "payment store", err)
	return store
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
