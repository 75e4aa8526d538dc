package config_test

import (
	"testing"
	"time"

	"teamtasks/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 248, cfg.Scheduler.BatchSize)
	assert.Equal(t, time.Second, cfg.Scheduler.BatchDelay)
	assert.Equal(t, "Europe/Madrid", cfg.Scheduler.TimeZone)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_BATCH_SIZE", "100")
	t.Setenv("SCHEDULER_BATCH_DELAY", "250ms")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("DB_HOST", "db")

	cfg := config.Load()

	assert.Equal(t, 100, cfg.Scheduler.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.BatchDelay)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Contains(t, cfg.DSN(), "host=db ")
	assert.Contains(t, cfg.MigrationURL(), "@db:5432/")
}

func TestSchedulerConfig_Location(t *testing.T) {
	loc, err := config.SchedulerConfig{TimeZone: "Europe/Madrid"}.Location()
	assert.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", loc.String())

	_, err = config.SchedulerConfig{TimeZone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}
