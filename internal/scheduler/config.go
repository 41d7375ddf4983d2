package scheduler

import (
	"time"

	"github.com/smallbiznis/wastebill/internal/config"
)

const (
	JobIssuance       = "issuance"
	JobMpesaReprocess = "mpesa_reprocess"
	JobNotifications  = "notifications"
	// JobCollectionReset clears the weekly collected flags.
	JobCollectionReset = "collection_reset"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval     time.Duration
	JobTimeout      time.Duration
	IssuanceCron    string
	IssuanceTimeout time.Duration
	IssuanceLockTTL time.Duration
	// CollectionResetCron defaults to Monday midnight.
	CollectionResetCron    string
	CollectionResetLockTTL time.Duration
	ReprocessBatch         int
	NotificationBatch      int
	EnabledJobs            []string
	Location               *time.Location
}

func DefaultConfig() Config {
	return Config{
		RunInterval:     time.Minute,
		JobTimeout:      30 * time.Second,
		IssuanceCron:    "0 0 1 * *",
		IssuanceTimeout: 30 * time.Minute,
		IssuanceLockTTL: 6 * time.Hour,

		CollectionResetCron:    "0 0 * * 1",
		CollectionResetLockTTL: 6 * time.Hour,
		ReprocessBatch:         50,
		NotificationBatch:      100,
		Location:               time.Local,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.IssuanceCron == "" {
		c.IssuanceCron = defaults.IssuanceCron
	}
	if c.IssuanceTimeout <= 0 {
		c.IssuanceTimeout = defaults.IssuanceTimeout
	}
	if c.IssuanceLockTTL <= 0 {
		c.IssuanceLockTTL = defaults.IssuanceLockTTL
	}
	if c.CollectionResetCron == "" {
		c.CollectionResetCron = defaults.CollectionResetCron
	}
	if c.CollectionResetLockTTL <= 0 {
		c.CollectionResetLockTTL = defaults.CollectionResetLockTTL
	}
	if c.ReprocessBatch <= 0 {
		c.ReprocessBatch = defaults.ReprocessBatch
	}
	if c.NotificationBatch <= 0 {
		c.NotificationBatch = defaults.NotificationBatch
	}
	if c.Location == nil {
		c.Location = defaults.Location
	}
	return c
}

// ProvideConfig maps application config onto scheduler settings.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:    cfg.Scheduler.RunInterval,
		IssuanceCron:   cfg.Scheduler.IssuanceCron,
		EnabledJobs:    cfg.Scheduler.EnabledJobs,
		ReprocessBatch: cfg.Mpesa.ReprocessBatch,

		CollectionResetCron: cfg.Scheduler.CollectionResetCron,
	}.withDefaults()
}
