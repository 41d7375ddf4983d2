package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/wastebill/internal/clock"
	customerdomain "github.com/smallbiznis/wastebill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/wastebill/internal/invoice/domain"
	mpesadomain "github.com/smallbiznis/wastebill/internal/mpesa/domain"
	notificationdomain "github.com/smallbiznis/wastebill/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/wastebill/internal/observability/metrics"
	"github.com/smallbiznis/wastebill/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Reprocessor retries inbound mobile-money rows that were not settled.
type Reprocessor interface {
	Reprocess(ctx context.Context, batchSize int) (mpesadomain.ReprocessResult, error)
}

// Drainer delivers queued notifications.
type Drainer interface {
	Drain(ctx context.Context, limit int) (notificationdomain.DrainResult, error)
}

// Issuer runs the monthly invoice batch.
type Issuer interface {
	IssueForMonth(ctx context.Context, month, year int) (invoicedomain.IssueResult, error)
}

// CollectionResetter clears the weekly collected flags.
type CollectionResetter interface {
	ResetCollections(ctx context.Context) (customerdomain.ResetCollectionsResult, error)
}

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	InvoiceSvc  invoicedomain.Service
	MpesaSvc    mpesadomain.Service
	CustomerSvc customerdomain.Service `optional:"true"`
	Drainer     Drainer
	Locker      *ratelimit.Locker `optional:"true"`
	Clock       clock.Clock       `optional:"true"`
	Config      Config            `optional:"true"`
}

type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	issuer      Issuer
	reprocessor Reprocessor
	drainer     Drainer
	resetter    CollectionResetter
	locker      *ratelimit.Locker

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	done   chan struct{}
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.InvoiceSvc == nil || p.MpesaSvc == nil || p.Drainer == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	if _, err := cron.ParseStandard(cfg.IssuanceCron); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCron, cfg.IssuanceCron, err)
	}
	if _, err := cron.ParseStandard(cfg.CollectionResetCron); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCron, cfg.CollectionResetCron, err)
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	sched := &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         cfg,
		genID:       p.GenID,
		clock:       clk,
		issuer:      p.InvoiceSvc,
		reprocessor: p.MpesaSvc,
		drainer:     p.Drainer,
		locker:      p.Locker,
	}
	if p.CustomerSvc != nil {
		sched.resetter = p.CustomerSvc
	}
	return sched, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout: the next tick resumes the work.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled interval job a single time. Issuance and the
// collection reset are driven by cron and are not part of the tick.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name      string
		BatchSize int
		Run       func(context.Context) error
	}{
		{JobMpesaReprocess, s.cfg.ReprocessBatch, s.MpesaReprocessJob},
		{JobNotifications, s.cfg.NotificationBatch, s.NotificationsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.BatchSize, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// No explicit list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// RunIssuance issues the current month's invoices under the leader lock.
func (s *Scheduler) RunIssuance(ctx context.Context) error {
	return s.runJob(ctx, JobIssuance, 0, s.cfg.IssuanceTimeout, s.IssuanceJob)
}

// IssuanceJob issues invoices for the month the clock is in. With Redis
// configured, only the replica holding the period lock issues; the batch
// double-issue guard still applies to the others.
func (s *Scheduler) IssuanceJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobIssuance, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	now := s.clock.Now().In(s.cfg.Location)
	month, year := int(now.Month()), now.Year()
	key := issuanceLockKey(month, year)

	release, acquired, err := s.acquireLeader(ctx, key, s.cfg.IssuanceLockTTL)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.leader_lock.failed", JobIssuance, err, zap.String("lock_key", key))
		return err
	}
	if !acquired {
		obsmetrics.Scheduler().IncBatchDeferred(JobIssuance, obsmetrics.SchedulerBatchDeferredReasonLeaderLockHeld)
		s.logger(ctx).Info("scheduler.issuance.deferred",
			zap.String("lock_key", key),
			zap.String("reason", obsmetrics.SchedulerBatchDeferredReasonLeaderLockHeld),
		)
		return nil
	}

	result, err := s.issuer.IssueForMonth(ctx, month, year)
	if err != nil {
		release()
		s.logSchedulerError(ctx, run, "scheduler.issuance.failed", JobIssuance, err,
			zap.Int("month", month),
			zap.Int("year", year),
		)
		return err
	}

	run.AddProcessed(len(result.Invoices))
	run.AddErrors(result.Failed)
	obsmetrics.Scheduler().AddBatchProcessed(JobIssuance, "invoices", len(result.Invoices))
	s.logger(ctx).Info("scheduler.issuance.completed",
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Int("issued", len(result.Invoices)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return nil
}

// RunCollectionReset clears the collected flags under the weekly leader lock.
func (s *Scheduler) RunCollectionReset(ctx context.Context) error {
	return s.runJob(ctx, JobCollectionReset, 0, s.cfg.JobTimeout, s.CollectionResetJob)
}

// CollectionResetJob starts a new collection week. Pickups already live in
// the collection history, so only the flags are cleared.
func (s *Scheduler) CollectionResetJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobCollectionReset, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	if s.resetter == nil {
		return nil
	}

	key := collectionResetLockKey(s.clock.Now().In(s.cfg.Location))
	release, acquired, err := s.acquireLeader(ctx, key, s.cfg.CollectionResetLockTTL)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.leader_lock.failed", JobCollectionReset, err, zap.String("lock_key", key))
		return err
	}
	if !acquired {
		obsmetrics.Scheduler().IncBatchDeferred(JobCollectionReset, obsmetrics.SchedulerBatchDeferredReasonLeaderLockHeld)
		return nil
	}

	result, err := s.resetter.ResetCollections(ctx)
	if err != nil {
		release()
		s.logSchedulerError(ctx, run, "scheduler.collection_reset.failed", JobCollectionReset, err)
		return err
	}

	run.AddProcessed(int(result.Reset))
	obsmetrics.Scheduler().AddBatchProcessed(JobCollectionReset, "customers", int(result.Reset))
	s.logger(ctx).Info("scheduler.collection_reset.completed",
		zap.String("lock_key", key),
		zap.Int64("reset", result.Reset),
	)
	return nil
}

// MpesaReprocessJob sweeps inbound transactions that failed to settle.
func (s *Scheduler) MpesaReprocessJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobMpesaReprocess, s.cfg.ReprocessBatch)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	result, err := s.reprocessor.Reprocess(ctx, s.cfg.ReprocessBatch)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.mpesa_reprocess.failed", JobMpesaReprocess, err)
		return err
	}
	if result.Claimed == 0 {
		obsmetrics.Scheduler().IncBatchDeferred(JobMpesaReprocess, obsmetrics.SchedulerBatchDeferredReasonSkipLockedEmpty)
		return nil
	}

	settled := result.Allocated + result.Unmatched
	run.AddProcessed(settled)
	run.AddErrors(result.Failed)
	obsmetrics.Scheduler().AddBatchProcessed(JobMpesaReprocess, obsmetrics.LockResourceInboundMpesa, settled)
	return nil
}

// NotificationsJob delivers due notifications from the outbox.
func (s *Scheduler) NotificationsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobNotifications, s.cfg.NotificationBatch)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	result, err := s.drainer.Drain(ctx, s.cfg.NotificationBatch)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.notifications.failed", JobNotifications, err)
		return err
	}
	if result.Sent+result.Failed == 0 {
		obsmetrics.Scheduler().IncBatchDeferred(JobNotifications, obsmetrics.SchedulerBatchDeferredReasonSkipLockedEmpty)
		return nil
	}

	run.AddProcessed(result.Sent)
	run.AddErrors(result.Failed)
	obsmetrics.Scheduler().AddBatchProcessed(JobNotifications, obsmetrics.LockResourcePendingNotifying, result.Sent)
	return nil
}

// Start registers the issuance cron entry and starts the interval loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	logger := cronLogger{log: s.log.Sugar()}
	c := cron.New(
		cron.WithLocation(s.cfg.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if s.isJobEnabled(JobIssuance) {
		if _, err := c.AddFunc(s.cfg.IssuanceCron, func() {
			if err := s.RunIssuance(context.Background()); err != nil {
				s.log.Warn("scheduler issuance failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
	}
	if s.isJobEnabled(JobCollectionReset) && s.resetter != nil {
		if _, err := c.AddFunc(s.cfg.CollectionResetCron, func() {
			if err := s.RunCollectionReset(context.Background()); err != nil {
				s.log.Warn("scheduler collection reset failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
	}
	c.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunForever(ctx)
	}()

	s.cron = c
	s.cancel = cancel
	s.done = done
	s.log.Info("scheduler started",
		zap.String("issuance_cron", s.cfg.IssuanceCron),
		zap.String("collection_reset_cron", s.cfg.CollectionResetCron),
		zap.Duration("run_interval", s.cfg.RunInterval),
		zap.Strings("enabled_jobs", s.cfg.EnabledJobs),
	)
	return nil
}

// Stop cancels the loop and waits for running cron jobs or ctx expiry.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel, done := s.cron, s.cancel, s.done
	s.cron, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	cronDone := c.Stop()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cronDone.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
