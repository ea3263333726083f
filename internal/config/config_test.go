package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LightMap-Intelligence/internal/config"
)

// validConfig returns a Config that passes Validate().
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_InvalidServerPort(t *testing.T) {
	t.Parallel()
	for _, p := range []int{-1, 65536, 100000} {
		cfg := validConfig()
		cfg.Server.Port = p
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.port")
	}
}

func TestConfig_Validate_MissingDatabaseHost(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Database.Host = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")
}

func TestConfig_Validate_MissingDatabaseName(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Database.DBName = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.db_name")
}

func TestConfig_Validate_RedisEnabledRequiresAddr(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr")
}

func TestConfig_Validate_KafkaEnabledRequiresBrokersAndTopic(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.brokers")

	cfg = validConfig()
	cfg.Kafka.Enabled = true
	cfg.Kafka.SessionTopic = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.session_topic")
}

func TestConfig_Validate_EmbeddingEnabledRequiresEndpoint(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Embedding.Enabled = true
	cfg.Embedding.Endpoint = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.endpoint")
}

func TestConfig_Validate_EmbeddingThresholdRange(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Embedding.Enabled = true
	cfg.Embedding.Endpoint = "http://serving:8500"
	cfg.Embedding.Threshold = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding.threshold")
}

func TestConfig_Validate_LLMEnabledRequiresEndpoint(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.LLM.Enabled = true
	cfg.LLM.Endpoint = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.endpoint")
}

func TestConfig_Validate_WeightsMustSumToOne(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Pipeline.Weights.Type = 0.9
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.weights")
}

func TestConfig_Validate_AssignFloorRange(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Pipeline.AssignFloor = 1.2
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.assign_floor")
}

func TestConfig_Validate_GroupingMemberRatioRange(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Pipeline.Grouping.MemberRatio = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.grouping.member_ratio")
}

func TestConfig_Validate_BoostEnabledChecksThresholdAndLimit(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Pipeline.Boost.Enabled = true
	cfg.Pipeline.Boost.Threshold = 2.0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.boost.threshold")

	cfg = validConfig()
	cfg.Pipeline.Boost.Enabled = true
	cfg.Pipeline.Boost.SuggestionLimit = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.boost.suggestion_limit")
}

func TestWeightsConfig_Sum(t *testing.T) {
	t.Parallel()
	w := config.WeightsConfig{Type: 0.25, Pixels: 0.2, Spatial: 0.2, Name: 0.2, Structure: 0.15}
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}
