// The apiserver binary serves the mapping resolution API: the four-phase
// pipeline, dictionary queries, coverage boost, and the session finalization
// endpoint that feeds the dictionary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/LightMap-Intelligence/internal/application/coverage"
	"github.com/turtacn/LightMap-Intelligence/internal/application/mapping"
	"github.com/turtacn/LightMap-Intelligence/internal/config"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/dictionary"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/effecttree"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/layout"
	"github.com/turtacn/LightMap-Intelligence/internal/domain/matching"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LightMap-Intelligence/internal/intelligence/adjudicator"
	"github.com/turtacn/LightMap-Intelligence/internal/intelligence/common"
	"github.com/turtacn/LightMap-Intelligence/internal/intelligence/embedding"
	httpserver "github.com/turtacn/LightMap-Intelligence/internal/interfaces/http"
	"github.com/turtacn/LightMap-Intelligence/internal/interfaces/http/handlers"
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

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api server failed", logging.Err(err))
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting LightMap-Intelligence API server",
		logging.String("version", Version),
		logging.String("host", cfg.Server.Host),
		logging.Int("port", cfg.Server.Port),
	)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "lightmap",
		Subsystem:            "api",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	var checkers []handlers.HealthChecker
	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	// Dictionary stack: pgx pool, migrations, optional Redis read cache.
	var dictService *dictionary.Service
	if cfg.Pipeline.Dictionary.Enabled {
		if cfg.Database.MigrationPath != "" {
			if err := postgres.RunMigrations(postgres.DSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
				return err
			}
		}

		pool, err := postgres.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, pool.Close)
		checkers = append(checkers, &postgresHealthAdapter{pool: pool})

		var store dictionary.Store = repositories.NewDictionaryRepository(pool, logger)

		if cfg.Redis.Enabled {
			client, err := redis.NewClient(cfg.Redis, logger)
			if err != nil {
				return err
			}
			cleanups = append(cleanups, func() { _ = client.Close() })
			checkers = append(checkers, &redisHealthAdapter{client: client})

			cache := redis.NewRedisCache(client, logger,
				redis.WithPrefix("lightmap:dict:"),
				redis.WithDefaultTTL(cfg.Redis.CacheTTL),
			)
			store = redis.NewCachedDictionaryStore(store, cache, cfg.Redis.CacheTTL, logger)
		}

		dictService = dictionary.NewService(store, dictionary.Options{
			FuzzyMaxDist:   cfg.Pipeline.Dictionary.FuzzyMaxDist,
			SignatureMatch: cfg.Pipeline.Dictionary.SignatureMatch,
		}, logger)
	}

	// Session recorder: Kafka when deployed, otherwise direct dictionary
	// writes, otherwise the endpoint reports unavailable.
	var recorder handlers.SessionRecorder
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, logger)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, func() { _ = producer.Close() })
		recorder = &kafkaSessionRecorder{producer: producer, topic: cfg.Kafka.SessionTopic}
	} else if dictService != nil {
		recorder = &directSessionRecorder{dict: dictService}
	}

	var embedder mapping.Embedder
	if cfg.Embedding.Enabled {
		serving, err := common.NewServingClient(cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.Timeout, logger)
		if err != nil {
			return err
		}
		embedder = embedding.NewClient(serving, embedding.Options{
			Model:     cfg.Embedding.Model,
			Threshold: cfg.Embedding.Threshold,
			MaxBatch:  cfg.Embedding.MaxBatch,
		}, logger)
	}

	var adj mapping.Adjudicator
	if cfg.LLM.Enabled {
		serving, err := common.NewServingClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Timeout, logger)
		if err != nil {
			return err
		}
		adj = adjudicator.NewClient(serving, adjudicator.Options{
			Model:    cfg.LLM.Model,
			MaxBatch: cfg.LLM.MaxBatch,
		}, logger)
	}

	var dictPhase mapping.Dictionary
	if dictService != nil {
		dictPhase = dictService
	}

	pipeline := mapping.NewPipeline(
		layout.NewClassifier(layout.DefaultTables(), logger),
		effecttree.NewBuilder(effecttreeConfig(cfg), logger),
		matching.NewEngine(engineOptions(cfg), logger),
		dictPhase,
		embedder,
		adj,
		mapping.Options{
			DictionaryEnabled: dictPhase != nil,
			EmbeddingEnabled:  embedder != nil,
			LLMEnabled:        adj != nil,
		},
		logger,
	)

	routerCfg := httpserver.RouterConfig{
		MappingHandler:   handlers.NewMappingHandler(pipeline, recorder, metrics, logger),
		HealthHandler:    handlers.NewHealthHandler(Version, checkers...),
		Logger:           logger,
		Metrics:          metrics,
		MetricsCollector: collector,
	}
	if dictService != nil {
		routerCfg.DictionaryHandler = handlers.NewDictionaryHandler(dictService, metrics, logger)
	}
	if cfg.Pipeline.Boost.Enabled {
		matcher := coverage.NewMatcher(cfg.Pipeline.Boost, logger)
		routerCfg.CoverageHandler = handlers.NewCoverageHandler(matcher, logger)
	}

	server := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// engineOptions maps configured weights onto engine options.
func engineOptions(cfg *config.Config) matching.Options {
	return matching.Options{
		Weights: matching.Weights{
			Type:      cfg.Pipeline.Weights.Type,
			Pixels:    cfg.Pipeline.Weights.Pixels,
			Spatial:   cfg.Pipeline.Weights.Spatial,
			Name:      cfg.Pipeline.Weights.Name,
			Structure: cfg.Pipeline.Weights.Structure,
		},
		AssignFloor:   cfg.Pipeline.AssignFloor,
		SubmodelFloor: cfg.Pipeline.SubmodelFloor,
	}
}

// effecttreeConfig maps configured grouping thresholds onto builder config.
func effecttreeConfig(cfg *config.Config) effecttree.Config {
	c := effecttree.DefaultConfig()
	if cfg.Pipeline.Grouping.MemberRatio > 0 {
		c.MemberRatio = cfg.Pipeline.Grouping.MemberRatio
	}
	return c
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
