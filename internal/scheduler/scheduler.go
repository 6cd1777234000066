package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/studypay/duebell/internal/engine"
	"github.com/studypay/duebell/pkg/logger"
)

const defaultSpec = "@daily"

// Scheduler drives the engine pass on a cron cadence. It shares the pass
// implementation with the HTTP trigger, so running both at once is safe.
type Scheduler struct {
	engine  *engine.Engine
	cron    *cron.Cron
	log     *zap.Logger
	spec    string
	enabled bool
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithSpec overrides the cron specification for the pass.
func WithSpec(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.spec = spec
		}
	}
}

// WithEnabled toggles the scheduler without rewiring callers.
func WithEnabled(enabled bool) Option {
	return func(s *Scheduler) {
		s.enabled = enabled
	}
}

// New constructs a Scheduler with sensible defaults.
func New(eng *engine.Engine, opts ...Option) *Scheduler {
	s := &Scheduler{
		engine:  eng,
		spec:    defaultSpec,
		enabled: true,
		log:     logger.WithModule("scheduler"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return s
}

// Start registers the pass job and launches the cron loop.
func (s *Scheduler) Start() error {
	if !s.enabled || s.engine == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.Warn("scheduled pass finished with item errors", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the cron loop, waiting for a running pass to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes a single pass immediately.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.engine == nil {
		return nil
	}

	started := time.Now()
	summary, err := s.engine.Run(ctx)
	s.log.Info("pass finished",
		zap.Duration("took", time.Since(started)),
		zap.Int("installments_scanned", summary.InstallmentsScanned),
		zap.Int("transitioned", summary.Transitioned),
		zap.Int("sent", summary.Notifications.Sent),
	)
	return err
}
