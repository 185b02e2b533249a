package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a unit of periodic maintenance work.
type Task func(context.Context) error

// Scheduler runs named tasks on cron schedules. Overlapping runs of the same task are skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewScheduler builds a scheduler; timeout bounds each task run (zero means no bound).
func NewScheduler(logger *zap.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register adds a task on a cron schedule (standard five-field cron or descriptors like "@every 1h").
func (s *Scheduler) Register(name, schedule string, task Task) error {
	if task == nil {
		return fmt.Errorf("task %s is nil", name)
	}
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.run(name, task)
	}))
	if _, err := s.cron.AddJob(schedule, job); err != nil {
		return fmt.Errorf("register task %s: %w", name, err)
	}
	s.logger.Info("scheduled task registered", zap.String("task", name), zap.String("schedule", schedule))
	return nil
}

// Start begins dispatching. Safe to call once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Stop cancels in-flight tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.started = false
}

func (s *Scheduler) run(name string, task Task) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := task(ctx); err != nil {
		s.logger.Error("scheduled task failed", zap.String("task", name), zap.Error(err))
		return
	}
	s.logger.Debug("scheduled task finished", zap.String("task", name), zap.Duration("took", time.Since(start)))
}
