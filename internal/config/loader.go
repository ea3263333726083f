// Package config provides configuration loading, defaults, and validation for
// the LightMap-Intelligence platform.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all platform settings.
const envPrefix = "LIGHTMAP"

// configKeys lists every settable configuration key.  Viper only consults the
// environment for keys it knows about, so each one is bound explicitly; this
// is what makes LoadFromEnv work with no config file present.
var configKeys = []string{
	"server.host", "server.port", "server.read_timeout", "server.write_timeout",
	"server.max_body_size", "server.shutdown_timeout",
	"log.level", "log.format", "log.output_paths", "log.error_output_paths",
	"database.host", "database.port", "database.user", "database.password",
	"database.db_name", "database.ssl_mode", "database.max_conns",
	"database.min_conns", "database.conn_max_lifetime",
	"database.conn_max_idle_time", "database.migration_path",
	"redis.enabled", "redis.addr", "redis.password", "redis.db",
	"redis.pool_size", "redis.min_idle_conns", "redis.dial_timeout",
	"redis.read_timeout", "redis.write_timeout", "redis.cache_ttl",
	"kafka.enabled", "kafka.brokers", "kafka.session_topic",
	"kafka.consumer_group", "kafka.batch_timeout", "kafka.max_retries",
	"embedding.enabled", "embedding.endpoint", "embedding.api_key",
	"embedding.model", "embedding.timeout", "embedding.threshold",
	"embedding.max_batch",
	"llm.enabled", "llm.endpoint", "llm.api_key", "llm.model", "llm.timeout",
	"llm.max_batch", "llm.max_attempts",
	"pipeline.weights.type", "pipeline.weights.pixels",
	"pipeline.weights.spatial", "pipeline.weights.name",
	"pipeline.weights.structure",
	"pipeline.dictionary.enabled", "pipeline.dictionary.fuzzy_max_dist",
	"pipeline.dictionary.signature_match",
	"pipeline.grouping.member_ratio",
	"pipeline.boost.enabled", "pipeline.boost.threshold",
	"pipeline.boost.suggestion_limit", "pipeline.boost.cascade_min_models",
	"pipeline.boost.cascade_ratio",
	"pipeline.assign_floor", "pipeline.submodel_floor",
}

// newViper builds a pre-configured Viper instance with the platform's standard
// settings: YAML file type, LIGHTMAP_ env prefix, automatic env binding, and a
// key replacer that maps "." → "_" so that nested keys like "database.host"
// resolve to "LIGHTMAP_DATABASE_HOST".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the YAML file at configPath, merges any LIGHTMAP_* environment
// variable overrides, applies platform defaults for unset fields, and
// validates the result.  It returns a fully-populated *Config or a
// descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from LIGHTMAP_* environment variables,
// with no config file required.  This is the preferred loading strategy for
// containerised (12-factor) deployments.
//
// Environment variable naming convention:
//
//	LIGHTMAP_<SECTION>_<FIELD>   e.g.  LIGHTMAP_DATABASE_HOST, LIGHTMAP_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	v := newViper()
	// No config file — rely solely on env vars and defaults.
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk.  It is intended for
// hot-reloading non-critical settings such as log level and pipeline
// thresholds; callers are responsible for applying only the safe subset of
// changes at runtime.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse or validate, onChange is NOT called so
// the application never enters a broken state.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	// Initial read — errors are ignored here; callers should call Load first.
	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
