package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripsmith/tripsmith/pkg/config"
)

// fakeEngine counts supervisor calls and records the reap age it saw.
type fakeEngine struct {
	slaChecks atomic.Int64
	reaps     atomic.Int64
	reapAge   atomic.Int64
}

func (f *fakeEngine) CheckSLAs(ctx context.Context) {
	f.slaChecks.Add(1)
}

func (f *fakeEngine) Reap(maxAge time.Duration) int {
	f.reaps.Add(1)
	f.reapAge.Store(int64(maxAge))
	return 0
}

func testEngineConfig() *config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.SLACheckInterval = 20 * time.Millisecond
	cfg.CleanupInterval = 20 * time.Millisecond
	cfg.MaxWorkflowAge = 5 * time.Minute
	return cfg
}

func TestService_RunsImmediateSLAPass(t *testing.T) {
	engine := &fakeEngine{}
	cfg := testEngineConfig()
	cfg.SLACheckInterval = 1 * time.Hour
	cfg.CleanupInterval = 1 * time.Hour

	svc := NewService(cfg, engine)
	svc.Start(context.Background())
	defer svc.Stop()

	// The first SLA pass runs before the first tick.
	require.Eventually(t, func() bool {
		return engine.slaChecks.Load() >= 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), engine.reaps.Load(), "reaping waits for its first tick")
}

func TestService_TicksBothLoops(t *testing.T) {
	engine := &fakeEngine{}
	svc := NewService(testEngineConfig(), engine)
	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		return engine.slaChecks.Load() >= 3 && engine.reaps.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(5*time.Minute), engine.reapAge.Load())
}

func TestService_StopTerminatesLoop(t *testing.T) {
	engine := &fakeEngine{}
	svc := NewService(testEngineConfig(), engine)
	svc.Start(context.Background())
	svc.Stop()

	checks := engine.slaChecks.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, checks, engine.slaChecks.Load(), "no SLA passes after Stop")
}

func TestService_StartIsIdempotent(t *testing.T) {
	engine := &fakeEngine{}
	svc := NewService(testEngineConfig(), engine)
	svc.Start(context.Background())
	svc.Start(context.Background())
	svc.Stop()
}

func TestService_StopWithoutStartIsNoOp(t *testing.T) {
	svc := NewService(testEngineConfig(), &fakeEngine{})
	svc.Stop()
}
