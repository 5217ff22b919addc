// Package app wires configuration into the verification service and its
// supporting stores. The API server, the workers and the backfill command
// share it.
package app

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"croptrust/verification-portal/verification-backend/internal/config"
	"croptrust/verification-portal/verification-backend/internal/cropdirectory"
	"croptrust/verification-portal/verification-backend/internal/notifications"
	"croptrust/verification-portal/verification-backend/internal/verification"
	"croptrust/verification-portal/verification-backend/pkg/database"
	"croptrust/verification-portal/verification-backend/pkg/events"
	"croptrust/verification-portal/verification-backend/pkg/locking"
	"croptrust/verification-portal/verification-backend/pkg/storage"
)

// App holds the constructed components
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	Repo       verification.Repository
	Deliveries notifications.DeliveryStore
	Dispatcher *notifications.Dispatcher
	Service    *verification.Service
	RequestIDs *verification.RequestIDGenerator

	closers []func(context.Context) error
}

// New connects every configured backend. On error the components opened so
// far are closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, source string) (*App, error) {
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   prometheus.NewRegistry(),
		RequestIDs: verification.NewRequestIDGenerator(cfg.RequestID.Location()),
	}
	if err := a.build(ctx, source); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, source string) error {
	cfg := a.Config
	logger := a.Logger

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.openStores(ctx); err != nil {
		return err
	}

	photos, err := a.photoStore(ctx)
	if err != nil {
		return err
	}

	locker, err := a.locker(ctx)
	if err != nil {
		return err
	}

	notifier, err := a.notifier(ctx)
	if err != nil {
		return err
	}

	var crops verification.CropDirectory
	if cfg.CropDirectory.BaseURL != "" {
		crops = cropdirectory.NewClient(cfg.CropDirectory.BaseURL, cfg.CropDirectory.APIKey, cfg.CropDirectory.Timeout, logger)
	} else {
		logger.Warn("Crop directory not configured, submit-by-crop is unavailable")
	}

	a.Service = verification.NewService(verification.ServiceDeps{
		Repo:     a.Repo,
		Photos:   verification.NewPhotoStorage(photos, cfg.Storage.Folder, cfg.Storage.UploadTimeout),
		Crops:    crops,
		Notifier: notifier,
		Locker:   locker,
		Events:   a.publisher(source),
		Metrics:  verification.NewMetrics(a.Registry),
		IDs:      a.RequestIDs,
		Logger:   logger,
		Config: verification.Config{
			MaxPhotos:            cfg.Storage.MaxPhotos,
			MaxPhotoBytes:        cfg.Storage.MaxPhotoBytes,
			MaxRequestIDAttempts: cfg.RequestID.MaxAttempts,
			CropLookupTimeout:    cfg.CropDirectory.Timeout,
			NotifyTimeout:        cfg.Workers.NotifyTimeout,
		},
	})
	return nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Store.Driver {
	case config.StoreMongo:
		client, err := database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Disconnect)

		db := client.Database(cfg.Mongo.Database)
		repo := verification.NewMongoRepository(db, cfg.Mongo.VerificationCollection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("failed to create verification indexes: %w", err)
		}
		deliveries := notifications.NewMongoDeliveryStore(db, cfg.Mongo.DeliveryCollection)
		if err := deliveries.EnsureIndexes(ctx); err != nil {
			return err
		}
		a.Repo, a.Deliveries = repo, deliveries

	case config.StorePostgres:
		db, err := database.OpenPostgres(cfg.Database.GetDatabaseURL(), database.PostgresOptions{
			MaxOpenConns: cfg.Database.MaxConnections,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			MaxLifetime:  cfg.Database.MaxLifetime,
		})
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, func(context.Context) error { return sqlDB.Close() })
		}

		repo := verification.NewPostgresRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate verifications: %w", err)
		}
		deliveries := notifications.NewGormDeliveryStore(db)
		if err := deliveries.Migrate(ctx); err != nil {
			return err
		}
		a.Repo, a.Deliveries = repo, deliveries

	default:
		a.Logger.Warn("Using in-memory store, records are lost on restart")
		a.Repo = verification.NewMemoryRepository()
		a.Deliveries = notifications.NewMemoryDeliveryStore()
	}

	a.Logger.Info("Store ready", zap.String("driver", cfg.Store.Driver))
	return nil
}

func (a *App) photoStore(ctx context.Context) (storage.ObjectStore, error) {
	cfg := a.Config.Storage
	if cfg.Bucket == "" {
		a.Logger.Warn("No S3 bucket configured, photos are kept in memory")
		return storage.NewMemoryStore(cfg.PublicBaseURL), nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3Options{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UsePathStyle:    cfg.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	return storage.NewS3Store(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func (a *App) locker(ctx context.Context) (locking.Locker, error) {
	cfg := a.Config.Redis
	if cfg.URL == "" {
		return locking.NewMemoryLocker(), nil
	}

	client, err := database.ConnectRedis(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return locking.NewRedisLocker(client, cfg.KeyPrefix), nil
}

func (a *App) publisher(source string) events.Publisher {
	cfg := a.Config.Kafka
	if len(cfg.Brokers) == 0 {
		return events.NoopPublisher{}
	}
	producer := events.NewKafkaProducer(cfg.Brokers, cfg.Topic, source, a.Logger)
	a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
	return producer
}

// notifier builds the delivery chain: WhatsApp first, SMS as fallback. It
// returns nil when no channel is configured.
func (a *App) notifier(ctx context.Context) (verification.Notifier, error) {
	cfg := a.Config
	var channels []notifications.Channel

	if cfg.Chatrace.Enabled() {
		wa, err := notifications.NewWhatsAppChannel(notifications.WhatsAppConfig{
			APIURL:          cfg.Chatrace.APIURL,
			APIKey:          cfg.Chatrace.APIKey,
			ApprovalFlowID:  cfg.Chatrace.ApprovalFlowID,
			RejectionFlowID: cfg.Chatrace.RejectionFlowID,
			CountryCode:     notifications.DefaultCountryCode,
			Timeout:         cfg.Chatrace.Timeout,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		channels = append(channels, wa)
	}

	if cfg.SMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SMS.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config for sms: %w", err)
		}
		channels = append(channels, notifications.NewSMSChannel(sns.NewFromConfig(awsCfg), cfg.SMS.SenderID, a.Logger))
	}

	a.Dispatcher = notifications.NewDispatcher(a.Deliveries, a.Logger, cfg.Workers.MaxAttempts, channels...)
	if len(channels) == 0 {
		a.Logger.Warn("No notification channel configured, outcomes are not sent")
		return nil, nil
	}
	return a.Dispatcher, nil
}

// Backfiller returns a requestId backfiller over the configured store
func (a *App) Backfiller() *verification.Backfiller {
	return verification.NewBackfiller(a.Repo, a.RequestIDs, a.Config.RequestID.MaxAttempts, a.Logger)
}

// Close releases connections in reverse order of opening
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
