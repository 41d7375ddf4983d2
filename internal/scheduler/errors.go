package scheduler

import "errors"

var (
	ErrInvalidConfig = errors.New("scheduler_invalid_config")
	ErrInvalidCron   = errors.New("scheduler_invalid_cron")
)
