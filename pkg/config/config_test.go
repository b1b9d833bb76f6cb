package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidate_ClampsInvalidValues(t *testing.T) {
	cfg := &Config{
		Storage:    StorageConfig{Driver: "postgres", TimeoutMs: -1},
		Search:     SearchConfig{DefaultLimit: 0, MaxLimit: 0},
		Session:    SessionConfig{DurationMinutes: 0, SweepIntervalSec: -5},
		Unanswered: UnansweredConfig{SimilarityThreshold: 3},
	}

	cfg.Validate()

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 3*time.Second, cfg.StorageTimeout())
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 20, cfg.Search.MaxLimit)
	assert.Equal(t, 120*time.Minute, cfg.SessionDuration())
	assert.Equal(t, 24*time.Hour, cfg.MaxSessionDuration())
	assert.Equal(t, 0, cfg.Session.SweepIntervalSec)
	assert.Equal(t, 0.75, cfg.Unanswered.SimilarityThreshold)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestValidate_KeepsValidValues(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "memory"
	cfg.Session.DurationMinutes = 30
	cfg.Search.DefaultLimit = 3

	cfg.Validate()

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 30*time.Minute, cfg.SessionDuration())
	assert.Equal(t, 3, cfg.Search.DefaultLimit)
	assert.Equal(t, 20, cfg.Search.MaxLimit)
}
