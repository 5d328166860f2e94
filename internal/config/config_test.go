package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileThenEnv(t *testing.T) {
	t.Setenv("SNACK_PORT", "4444")
	t.Setenv("SNACK_KAFKA_ENABLED", "true")

	cfg := Default()
	require.NoError(t, LoadConfig(cfg))

	assert.Equal(t, 4444, cfg.MainConfig.Port)
	assert.True(t, cfg.KafkaConfig.Enabled)
	assert.Equal(t, "snack_activity", cfg.KafkaConfig.ActivityTopic)
	assert.Equal(t, 30, cfg.ChatConfig.PageSize)
}

func TestDefaultPingShorterThanPong(t *testing.T) {
	ws := Default().WsConfig
	assert.Less(t, ws.PingPeriodDuration(), ws.PongWaitDuration())
}
