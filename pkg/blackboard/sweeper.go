package blackboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/tripsmith/tripsmith/pkg/models"
)

// Start launches the background sweeper that catches expired entries
// whose deferred timers were missed.
func (b *Blackboard) Start(ctx context.Context) {
	if b.cancel != nil {
		return
	}
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go b.run(ctx)

	slog.Info("Blackboard sweeper started", "interval", b.sweepInterval)
}

// Stop halts the sweeper and detaches the invalidation subscription.
func (b *Blackboard) Stop() {
	if b.cancel == nil {
		return
	}
	b.cancel()
	<-b.done
	b.bus.Unsubscribe(b.subID)
	slog.Info("Blackboard sweeper stopped")
}

func (b *Blackboard) run(ctx context.Context) {
	defer close(b.done)

	b.sweep(ctx)

	ticker := time.NewTicker(b.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sweep(ctx)
		}
	}
}

// sweep scans every namespace for expired entries and removes them,
// emitting one delete notification per removed entry.
func (b *Blackboard) sweep(ctx context.Context) {
	type removed struct {
		ns  models.Namespace
		key string
	}

	now := time.Now()
	var purged []removed

	b.mu.Lock()
	for ns, m := range b.entries {
		for key, e := range m {
			if e.expired(now) {
				b.removeLocked(ns, key, e)
				purged = append(purged, removed{ns: ns, key: key})
			}
		}
	}
	b.mu.Unlock()

	if len(purged) == 0 {
		return
	}
	b.stats.expirations.Add(int64(len(purged)))
	for _, r := range purged {
		b.publishDelete(ctx, r.ns, r.key)
	}
	slog.Debug("Sweeper removed expired entries", "count", len(purged))
}
