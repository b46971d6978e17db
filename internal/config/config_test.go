package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.OpsAddr)
	assert.Equal(t, int64(81), cfg.CategoryDota)
	assert.Equal(t, 60*time.Second, cfg.SweepInterval)
	assert.Equal(t, 31*time.Minute, cfg.WarnWindow)
	assert.Equal(t, 10*time.Minute, cfg.BanGrace)
	assert.Equal(t, time.Hour, cfg.FeedbackBonus)
	assert.Equal(t, 3, cfg.DefaultMinHours)
	assert.Equal(t, "rent-audit", cfg.KafkaTopic)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("BAN_GRACE", "5m")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CATEGORY_VALORANT", "42")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.BanGrace)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, int64(42), cfg.CategoryValorant)
}
