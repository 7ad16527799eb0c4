// Package supervisor provides the periodic SLA sweeper and the
// terminal-workflow reaper.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/tripsmith/tripsmith/pkg/config"
)

// Engine is the slice of the workflow engine the supervisor drives.
type Engine interface {
	// CheckSLAs classifies every running saga against its template
	// thresholds, publishing transitions and force-failing breaches.
	CheckSLAs(ctx context.Context)
	// Reap removes terminal sagas older than maxAge and returns the
	// number removed.
	Reap(maxAge time.Duration) int
}

// Service periodically supervises the workflow engine:
//   - Measures running sagas against their SLA thresholds
//   - Garbage-collects terminal sagas past the retention age
//
// Both passes are idempotent; a missed tick is caught up on the next one.
type Service struct {
	config *config.EngineConfig
	engine Engine

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new supervisor service.
func NewService(cfg *config.EngineConfig, engine Engine) *Service {
	return &Service{
		config: cfg,
		engine: engine,
	}
}

// Start launches the background supervision loops.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("SLA supervisor started",
		"sla_check_interval", s.config.SLACheckInterval,
		"cleanup_interval", s.config.CleanupInterval,
		"max_workflow_age", s.config.MaxWorkflowAge)
}

// Stop signals the supervision loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("SLA supervisor stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.checkSLAs(ctx)

	slaTicker := time.NewTicker(s.config.SLACheckInterval)
	defer slaTicker.Stop()
	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-slaTicker.C:
			s.checkSLAs(ctx)
		case <-cleanupTicker.C:
			s.reapTerminal(ctx)
		}
	}
}

func (s *Service) checkSLAs(ctx context.Context) {
	s.engine.CheckSLAs(ctx)
}

func (s *Service) reapTerminal(_ context.Context) {
	count := s.engine.Reap(s.config.MaxWorkflowAge)
	if count > 0 {
		slog.Info("Supervisor: reaped terminal workflows", "count", count)
	}
}
