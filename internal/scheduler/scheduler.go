package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"BullionWatch/internal/metrics"
	"BullionWatch/internal/model"
	"BullionWatch/internal/snapshot"
)

// Trigger kinds, used as metric labels.
const (
	TriggerTimer   = "timer"
	TriggerManual  = "manual"
	TriggerStartup = "startup"
)

// ErrStopped is returned for runs requested after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Builder runs the fetch and compose stages.
type Builder interface {
	Build(ctx context.Context) (*model.Snapshot, error)
}

// Publisher delivers run results to connected clients without blocking.
type Publisher interface {
	PublishSnapshot(s *model.Snapshot)
	PublishError(message string)
}

// Scheduler drives the snapshot pipeline on a fixed interval and on demand.
// At most one run is in flight; requests arriving during a run are dropped.
type Scheduler struct {
	Cron     *cron.Cron
	builder  Builder
	holder   *snapshot.Holder
	pub      Publisher
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	ctx      context.Context

	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex // guards stopped and wg.Add
	stopped bool
}

// NewScheduler creates a new Scheduler. ctx bounds every run.
func NewScheduler(ctx context.Context, b Builder, holder *snapshot.Holder, pub Publisher, interval, timeout time.Duration, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger.Named("cron")}
	return &Scheduler{
		Cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		builder:  b,
		holder:   holder,
		pub:      pub,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		ctx:      ctx,
	}
}

// Start registers the periodic run and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return errors.New("update interval must be positive")
	}
	if _, err := s.Cron.AddFunc("@every "+s.interval.String(), func() { s.Trigger(TriggerTimer) }); err != nil {
		return fmt.Errorf("register update task: %w", err)
	}
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the timer and waits for an in-flight run to finish.
// Triggers after Stop are refused.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Running reports whether a run is in flight.
func (s *Scheduler) Running() bool { return s.running.Load() }

// RequestUpdate is a manual trigger. It returns false when the request was
// dropped because a run is already in flight.
func (s *Scheduler) RequestUpdate() bool { return s.Trigger(TriggerManual) }

// Trigger starts a run in the background unless one is in flight.
func (s *Scheduler) Trigger(kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		metrics.PipelineRuns.WithLabelValues(kind, "skipped").Inc()
		s.logger.Info("scheduler stopped, request dropped", zap.String("trigger", kind))
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		if kind == TriggerManual {
			metrics.DroppedRequests.Inc()
		}
		metrics.PipelineRuns.WithLabelValues(kind, "skipped").Inc()
		s.logger.Info("update already in progress, request dropped", zap.String("trigger", kind))
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.run(kind)
	}()
	return true
}

// RunNow runs the pipeline synchronously, honouring the in-flight guard.
func (s *Scheduler) RunNow(kind string) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return errors.New("update already in progress")
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	defer s.running.Store(false)
	return s.run(kind)
}

func (s *Scheduler) run(kind string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("running market update", zap.String("trigger", kind))
	snap, err := s.builder.Build(ctx)
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.PipelineRuns.WithLabelValues(kind, "error").Inc()
		s.logger.Error("market update failed, keeping previous snapshot", zap.String("trigger", kind), zap.Error(err))
		s.pub.PublishError(fmt.Sprintf("Market update failed: %v", err))
		return err
	}

	s.holder.Store(snap)
	metrics.PipelineRuns.WithLabelValues(kind, "ok").Inc()
	s.logger.Info("market update published",
		zap.String("trigger", kind),
		zap.String("id", snap.ID),
		zap.Int("unavailable", len(snap.Unavailable)),
		zap.Duration("took", time.Since(start)))
	s.pub.PublishSnapshot(snap)
	return nil
}
