package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBillingConfigIsValid(t *testing.T) {
	cfg := DefaultBillingConfig()
	require.NoError(t, validateBillingConfig(cfg))
	assert.Len(t, cfg.AgeBuckets, 6)
	assert.Equal(t, "KES", cfg.Currency)
}

func TestAgeBucketContains(t *testing.T) {
	buckets := DefaultBillingConfig().AgeBuckets
	labelFor := func(months int) string {
		for _, b := range buckets {
			if b.Contains(months) {
				return b.Label
			}
		}
		return ""
	}
	assert.Equal(t, "", labelFor(0))
	assert.Equal(t, "1", labelFor(1))
	assert.Equal(t, "5", labelFor(5))
	assert.Equal(t, "6+", labelFor(6))
	assert.Equal(t, "6+", labelFor(40))
}

func TestValidateBillingConfigRejectsBadBuckets(t *testing.T) {
	cfg := DefaultBillingConfig()
	cfg.AgeBuckets = []AgeBucket{{Label: "x", MinMonths: 3, MaxMonths: intPtr(1)}}
	assert.Error(t, validateBillingConfig(cfg))

	cfg = DefaultBillingConfig()
	cfg.Currency = " "
	assert.Error(t, validateBillingConfig(cfg))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("SCHEDULER_JOBS", "issuance, notifications")
	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, []string{"issuance", "notifications"}, cfg.Scheduler.EnabledJobs)
	assert.Equal(t, "0 0 1 * *", cfg.Scheduler.IssuanceCron)
	assert.Equal(t, "0 0 * * 1", cfg.Scheduler.CollectionResetCron)
	assert.False(t, cfg.Redis.Enabled())
}
