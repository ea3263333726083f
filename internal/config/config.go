// Package config defines all configuration structures for the
// LightMap-Intelligence platform.  No I/O or parsing logic lives here — only
// plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logging parameters.  It mirrors logging.LogConfig so that
// this package does not import infrastructure code.
type LogConfig struct {
	Level            string   `mapstructure:"level"`
	Format           string   `mapstructure:"format"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the mapping
// dictionary store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters for the dictionary cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// KafkaConfig holds Kafka parameters for the mapping session event stream.
type KafkaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Brokers       []string      `mapstructure:"brokers"`
	SessionTopic  string        `mapstructure:"session_topic"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

// EmbeddingConfig holds parameters for the embedding serving endpoint used by
// the semantic escalation phase.
type EmbeddingConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Endpoint  string        `mapstructure:"endpoint"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Threshold float64       `mapstructure:"threshold"`
	MaxBatch  int           `mapstructure:"max_batch"`
}

// LLMConfig holds parameters for the LLM adjudication endpoint used by the
// final escalation phase.
type LLMConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxBatch    int           `mapstructure:"max_batch"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// WeightsConfig holds the five matching factor weights.  They must sum to
// 1.0 within a small tolerance or Validate fails.
type WeightsConfig struct {
	Type      float64 `mapstructure:"type"`
	Pixels    float64 `mapstructure:"pixels"`
	Spatial   float64 `mapstructure:"spatial"`
	Name      float64 `mapstructure:"name"`
	Structure float64 `mapstructure:"structure"`
}

// Sum returns the total of all five weights.
func (w WeightsConfig) Sum() float64 {
	return w.Type + w.Pixels + w.Spatial + w.Name + w.Structure
}

// DictionaryConfig holds dictionary lookup behaviour.
type DictionaryConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	FuzzyMaxDist   int  `mapstructure:"fuzzy_max_dist"`
	SignatureMatch bool `mapstructure:"signature_match"`
}

// GroupingConfig holds the all-encompassing group detection thresholds.
type GroupingConfig struct {
	// MemberRatio is the fraction of individual display elements a group
	// must contain to be considered all-encompassing regardless of name.
	MemberRatio float64 `mapstructure:"member_ratio"`
}

// BoostConfig holds coverage-boost matcher parameters.
type BoostConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Threshold        float64 `mapstructure:"threshold"`
	SuggestionLimit  int     `mapstructure:"suggestion_limit"`
	CascadeMinModels int     `mapstructure:"cascade_min_models"`
	CascadeRatio     float64 `mapstructure:"cascade_ratio"`
}

// PipelineConfig holds the tunable knobs of the mapping resolution pipeline.
// Thresholds and weights default to calibrated values; override with care,
// as they materially change mapping quality.
type PipelineConfig struct {
	Weights       WeightsConfig    `mapstructure:"weights"`
	Dictionary    DictionaryConfig `mapstructure:"dictionary"`
	Grouping      GroupingConfig   `mapstructure:"grouping"`
	Boost         BoostConfig      `mapstructure:"boost"`
	AssignFloor   float64          `mapstructure:"assign_floor"`
	SubmodelFloor float64          `mapstructure:"submodel_floor"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object shared by all binaries.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

// Validate performs cross-field validation of the full configuration.  It is
// called by the loader after defaults are applied and before the Config is
// handed to the application.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d out of range", c.Database.Port)
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.SessionTopic == "" {
			return fmt.Errorf("config: kafka.session_topic is required when kafka is enabled")
		}
	}
	if c.Embedding.Enabled {
		if c.Embedding.Endpoint == "" {
			return fmt.Errorf("config: embedding.endpoint is required when embedding is enabled")
		}
		if c.Embedding.Threshold < 0 || c.Embedding.Threshold > 1 {
			return fmt.Errorf("config: embedding.threshold %.2f out of range [0,1]", c.Embedding.Threshold)
		}
	}
	if c.LLM.Enabled && c.LLM.Endpoint == "" {
		return fmt.Errorf("config: llm.endpoint is required when llm is enabled")
	}
	if s := c.Pipeline.Weights.Sum(); s < 0.999 || s > 1.001 {
		return fmt.Errorf("config: pipeline.weights must sum to 1.0, got %.4f", s)
	}
	if c.Pipeline.AssignFloor < 0 || c.Pipeline.AssignFloor > 1 {
		return fmt.Errorf("config: pipeline.assign_floor %.2f out of range [0,1]", c.Pipeline.AssignFloor)
	}
	if c.Pipeline.SubmodelFloor < 0 || c.Pipeline.SubmodelFloor > 1 {
		return fmt.Errorf("config: pipeline.submodel_floor %.2f out of range [0,1]", c.Pipeline.SubmodelFloor)
	}
	if r := c.Pipeline.Grouping.MemberRatio; r <= 0 || r > 1 {
		return fmt.Errorf("config: pipeline.grouping.member_ratio %.2f out of range (0,1]", r)
	}
	if c.Pipeline.Boost.Enabled {
		if t := c.Pipeline.Boost.Threshold; t < 0 || t > 1 {
			return fmt.Errorf("config: pipeline.boost.threshold %.2f out of range [0,1]", t)
		}
		if c.Pipeline.Boost.SuggestionLimit <= 0 {
			return fmt.Errorf("config: pipeline.boost.suggestion_limit must be positive")
		}
	}
	return nil
}
