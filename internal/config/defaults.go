// Package config provides configuration loading, defaults, and validation for
// the LightMap-Intelligence platform.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "lightmap"
	DefaultDBMaxConns = 25

	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisCacheTTL = 5 * time.Minute

	DefaultKafkaBroker        = "localhost:9092"
	DefaultKafkaSessionTopic  = "lightmap.mapping.sessions"
	DefaultKafkaConsumerGroup = "lightmap-session-workers"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultEmbeddingThreshold = 0.75
	DefaultEmbeddingMaxBatch  = 64
	DefaultLLMMaxBatch        = 20
	DefaultLLMMaxAttempts     = 2

	// Matching factor weights.  Calibrated against real vendor layout pairs;
	// must sum to 1.0.
	DefaultWeightType      = 0.35
	DefaultWeightPixels    = 0.25
	DefaultWeightSpatial   = 0.20
	DefaultWeightName      = 0.10
	DefaultWeightStructure = 0.10

	DefaultAssignFloor   = 0.15
	DefaultSubmodelFloor = 0.20

	DefaultFuzzyMaxDist = 2

	DefaultGroupMemberRatio = 0.8

	DefaultBoostThreshold        = 0.70
	DefaultBoostSuggestionLimit  = 5
	DefaultBoostCascadeMinModels = 30
	DefaultBoostCascadeRatio     = 0.20
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = DefaultRedisCacheTTL
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0".  We leave it as-is (0 is also the default).

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.SessionTopic == "" {
		cfg.Kafka.SessionTopic = DefaultKafkaSessionTopic
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = DefaultKafkaConsumerGroup
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = time.Second
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}

	// ── Embedding ─────────────────────────────────────────────────────────────
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.Threshold == 0 {
		cfg.Embedding.Threshold = DefaultEmbeddingThreshold
	}
	if cfg.Embedding.MaxBatch == 0 {
		cfg.Embedding.MaxBatch = DefaultEmbeddingMaxBatch
	}

	// ── LLM ───────────────────────────────────────────────────────────────────
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.MaxBatch == 0 {
		cfg.LLM.MaxBatch = DefaultLLMMaxBatch
	}
	if cfg.LLM.MaxAttempts == 0 {
		cfg.LLM.MaxAttempts = DefaultLLMMaxAttempts
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	if cfg.Pipeline.Weights.Sum() == 0 {
		cfg.Pipeline.Weights = WeightsConfig{
			Type:      DefaultWeightType,
			Pixels:    DefaultWeightPixels,
			Spatial:   DefaultWeightSpatial,
			Name:      DefaultWeightName,
			Structure: DefaultWeightStructure,
		}
	}
	if cfg.Pipeline.AssignFloor == 0 {
		cfg.Pipeline.AssignFloor = DefaultAssignFloor
	}
	if cfg.Pipeline.SubmodelFloor == 0 {
		cfg.Pipeline.SubmodelFloor = DefaultSubmodelFloor
	}
	if cfg.Pipeline.Dictionary.FuzzyMaxDist == 0 {
		cfg.Pipeline.Dictionary.FuzzyMaxDist = DefaultFuzzyMaxDist
	}
	if cfg.Pipeline.Grouping.MemberRatio == 0 {
		cfg.Pipeline.Grouping.MemberRatio = DefaultGroupMemberRatio
	}
	if cfg.Pipeline.Boost.Threshold == 0 {
		cfg.Pipeline.Boost.Threshold = DefaultBoostThreshold
	}
	if cfg.Pipeline.Boost.SuggestionLimit == 0 {
		cfg.Pipeline.Boost.SuggestionLimit = DefaultBoostSuggestionLimit
	}
	if cfg.Pipeline.Boost.CascadeMinModels == 0 {
		cfg.Pipeline.Boost.CascadeMinModels = DefaultBoostCascadeMinModels
	}
	if cfg.Pipeline.Boost.CascadeRatio == 0 {
		cfg.Pipeline.Boost.CascadeRatio = DefaultBoostCascadeRatio
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
