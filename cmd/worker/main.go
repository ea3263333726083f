// The worker binary consumes finalized mapping sessions from Kafka and
// folds their confirmations into the mapping dictionary.  It is the write
// path of the crowd-sourced dictionary; the API server only reads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/LightMap-Intelligence/internal/config"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/pkg/errors"
)

const defaultConfigPath = "configs/config.yaml"

// Version is injected via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	logger = logger.Named("worker")

	if err := run(cfg, logger); err != nil {
		logger.Fatal("dictionary worker failed", logging.Err(err))
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	if !cfg.Kafka.Enabled {
		return errors.New(errors.ErrCodeFeatureDisabled, "kafka is disabled; the dictionary worker has no event source")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting dictionary worker",
		logging.String("version", Version),
		logging.String("topic", cfg.Kafka.SessionTopic),
		logging.String("group", cfg.Kafka.ConsumerGroup),
	)

	if cfg.Database.MigrationPath != "" {
		if err := postgres.RunMigrations(postgres.DSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
			return err
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	var store dictionary.Store = repositories.NewDictionaryRepository(pool, logger)

	// When the API servers cache dictionary reads in Redis, the worker must
	// write through the same cache so confirmations invalidate stale keys.
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		cache := redis.NewRedisCache(client, logger,
			redis.WithPrefix("lightmap:dict:"),
			redis.WithDefaultTTL(cfg.Redis.CacheTTL),
		)
		store = redis.NewCachedDictionaryStore(store, cache, cfg.Redis.CacheTTL, logger)
	}

	dict := dictionary.NewService(store, dictionary.Options{
		FuzzyMaxDist:   cfg.Pipeline.Dictionary.FuzzyMaxDist,
		SignatureMatch: cfg.Pipeline.Dictionary.SignatureMatch,
	}, logger)

	consumer, err := kafka.NewConsumer(cfg.Kafka, sessionHandler(dict, logger), logger)
	if err != nil {
		return err
	}
	defer func() { _ = consumer.Close() }()

	err = consumer.Run(ctx)
	if ctx.Err() != nil {
		handled, failed := consumer.Counts()
		logger.Info("dictionary worker stopped",
			logging.Int64("handled", handled),
			logging.Int64("failed", failed),
		)
		return nil
	}
	return err
}

// sessionHandler folds one finalized session into the dictionary.  A bad
// event is logged and skipped; it never blocks the rest of the session.
func sessionHandler(dict *dictionary.Service, logger logging.Logger) kafka.Handler {
	return func(ctx context.Context, envelope *kafka.EventEnvelope) error {
		if envelope.EventType != kafka.EventTypeSessionFinalized {
			logger.Warn("ignoring unexpected event type",
				logging.String("event_type", envelope.EventType),
				logging.String("event_id", envelope.EventID),
			)
			return nil
		}

		var payload kafka.SessionFinalizedPayload
		if err := envelope.DecodePayload(&payload); err != nil {
			return err
		}

		var failed int
		for _, ev := range payload.Events {
			if err := dict.Record(ctx, ev); err != nil {
				failed++
				logger.Error("failed to record session event",
					logging.String("session_id", payload.SessionID),
					logging.String("source_name", ev.SourceName),
					logging.Err(err),
				)
			}
		}

		logger.Info("session folded into dictionary",
			logging.String("session_id", payload.SessionID),
			logging.Int("events", len(payload.Events)),
			logging.Int("failed", failed),
		)
		if failed == len(payload.Events) && failed > 0 {
			return errors.New(errors.ErrCodeDatabaseError, "every event in the session failed to record")
		}
		return nil
	}
}

// loadConfig resolves configuration from the flag, the default path, or the
// environment, in that order.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	return config.LoadFromEnv()
}
