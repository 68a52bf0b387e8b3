package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, []string{"Room 110/DI", "Room 111/DI", "Room 112/DI"}, cfg.Scheduler.Rooms)
	assert.Equal(t, 7, cfg.Scheduler.UTCOffsetHours)
	assert.Equal(t, 35*time.Minute, cfg.Scheduler.SessionLength)
	assert.Equal(t, 6, cfg.Scheduler.BatchSize)
	assert.Equal(t, 30, cfg.Scheduler.HorizonDays)
	assert.Equal(t, 3, cfg.Scheduler.MinProfessors)
	assert.False(t, cfg.AutoPlan.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.AutoPlan.Interval)
	assert.Equal(t, 1, cfg.AutoPlan.MaxRetries)
	assert.Equal(t, time.Minute, cfg.AutoPlan.RetryDelay)
}

func TestLoadSchedulerOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_ROOMS", " Lab A , Lab B ,")
	t.Setenv("SCHEDULER_BATCH_SIZE", "4")
	t.Setenv("SCHEDULER_SESSION_MINUTES", "-5")
	t.Setenv("AUTOPLAN_INTERVAL", "not-a-duration")
	t.Setenv("DEFENSE_CACHE_TTL", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"Lab A", "Lab B"}, cfg.Scheduler.Rooms)
	assert.Equal(t, 4, cfg.Scheduler.BatchSize)
	assert.Equal(t, 35*time.Minute, cfg.Scheduler.SessionLength)
	assert.Equal(t, 24*time.Hour, cfg.AutoPlan.Interval)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
}
