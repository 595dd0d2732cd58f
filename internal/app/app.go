package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"wellness/internal/alerts"
	"wellness/internal/config"
	"wellness/internal/db"
	"wellness/internal/gamification"
	"wellness/internal/push"
	"wellness/internal/ratelimit"
	"wellness/internal/types"
)

// Infra holds the long-lived clients shared by a process.
type Infra struct {
	Config *config.Config
	Logger *slog.Logger
	Log    types.Logger
	Clock  types.Clock

	Pool  *pgxpool.Pool
	Redis *redis.Client // nil when REDIS_URL is unset
	AWS   aws.Config
}

// Open connects to Postgres, Redis (when configured) and loads the AWS SDK
// configuration. Close releases whatever was opened.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Infra, error) {
	in := &Infra{
		Config: cfg,
		Logger: logger,
		Log:    NewSlogAdapter(logger),
		Clock:  types.RealClock{},
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	in.Pool = pool

	if cfg.Redis.Enabled() {
		client, err := ratelimit.NewClient(cfg.Redis.URL)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.Redis = client
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.AWS = awsCfg

	return in, nil
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.EndpointURL != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.EndpointURL))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// Close releases the Redis client and the database pool.
func (in *Infra) Close() error {
	var errs []error
	if in.Redis != nil {
		errs = append(errs, in.Redis.Close())
	}
	if in.Pool != nil {
		in.Pool.Close()
	}
	return errors.Join(errs...)
}

// Producer returns the alert producer backed by Postgres.
func (in *Infra) Producer() *alerts.Producer {
	return alerts.NewProducer(
		db.NewAlertTypeRepository(in.Pool),
		db.NewScheduledAlertRepository(in.Pool),
		in.Clock,
	)
}

// Dispatcher builds the alert dispatcher with the configured push
// provider, run lock and metrics.
func (in *Infra) Dispatcher() (*alerts.Dispatcher, error) {
	cfg := in.Config

	sender, err := push.NewSender(cfg.Push, cfg.AWS.PushQueueURL, push.Deps{
		Devices:    db.NewPushDeviceRepository(in.Pool),
		SQS:        sqs.NewFromConfig(in.AWS),
		HTTPClient: &http.Client{Timeout: cfg.Push.Timeout},
		Logger:     in.Log.With("component", "push"),
	})
	if err != nil {
		return nil, fmt.Errorf("building push sender: %w", err)
	}

	opts := []alerts.DispatcherOption{
		alerts.WithClock(in.Clock),
		alerts.WithRunLocker(in.runLocker()),
	}
	if cfg.Observability.EnableMetrics {
		opts = append(opts, alerts.WithMetrics(alerts.NewCloudWatchDispatchMetrics(
			cloudwatch.NewFromConfig(in.AWS), cfg.Observability.MetricNamespace, in.Log)))
	}

	return alerts.NewDispatcher(
		db.NewScheduledAlertRepository(in.Pool),
		alerts.NewResolver(db.NewAlertTypeRepository(in.Pool), db.NewPreferenceRepository(in.Pool)),
		db.NewAlertHistoryRepository(in.Pool),
		sender,
		alerts.DispatcherConfig{
			BatchSize:  cfg.Alerts.BatchSize,
			ClaimTTL:   cfg.Alerts.ClaimTTL,
			RunLockTTL: cfg.Alerts.RunLockTTL,
			Location:   cfg.Alerts.Location(),
		},
		in.Log.With("component", "dispatcher"),
		opts...,
	), nil
}

// runLocker prefers Redis and falls back to the job_locks table.
func (in *Infra) runLocker() alerts.RunLocker {
	if in.Redis != nil {
		return ratelimit.NewLocker(in.Redis)
	}
	return db.NewJobLockRepository(in.Pool, in.Clock)
}

// Gamification builds the XP service. Unlocks are announced through the
// alert producer.
func (in *Infra) Gamification() *gamification.Service {
	return gamification.NewService(
		db.NewGamificationRepository(in.Pool),
		in.Producer(),
		in.Clock,
		in.Config.Alerts.Location(),
		in.Log.With("component", "gamification"),
	)
}
