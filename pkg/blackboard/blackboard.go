// Package blackboard implements the namespaced working memory shared by
// all travel-planning sagas: a TTL-scoped key-value store with glob
// invalidation, change notification, and dual consistency classes.
//
// Namespaces form a fixed enumeration (see models.AllNamespaces).
// Selections and itinerary are strong: their writes deliver a state-sync
// notification inline before Write returns. Every other namespace is
// eventual and announces changes asynchronously on state-changed.
package blackboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

var (
	// ErrUnknownNamespace indicates an operation against a namespace
	// outside the fixed enumeration.
	ErrUnknownNamespace = errors.New("unknown namespace")
	// ErrNotFound indicates the entry does not exist or has expired.
	ErrNotFound = errors.New("entry not found")
	// ErrInvalidPattern indicates a glob pattern that does not compile.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// WriteOptions tunes one Write. The zero value means: TTL from the first
// matching configured rule (none if no rule matches) and an
// auto-incremented version.
type WriteOptions struct {
	// TTL overrides the configured rules when positive.
	TTL time.Duration
	// Version overrides the auto-incremented entry version when positive.
	Version int64
}

// QueryFilter narrows a Query. Zero-value fields are ignored; set fields
// combine with AND.
type QueryFilter struct {
	KeyPattern    string
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// Blackboard is the shared store. All mutations emit state-changed
// events; expiry and invalidation removals emit exactly one delete
// notification per removed entry.
type Blackboard struct {
	publisher *events.Publisher
	bus       *events.Bus
	subID     int

	ttlRules      []ttlRule
	invRules      []invalidationRule
	sweepInterval time.Duration

	mu      sync.RWMutex
	entries map[models.Namespace]map[string]*entry

	stats Stats

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a blackboard with the given policy configuration, wires it
// to the bus for change notifications, and subscribes it to
// state-invalidate events. The sweeper is not running until Start.
func New(cfg *config.BlackboardConfig, bus *events.Bus) (*Blackboard, error) {
	ttlRules, err := compileTTLRules(cfg.TTLRules)
	if err != nil {
		return nil, err
	}
	invRules, err := compileInvalidationRules(cfg.InvalidationRules)
	if err != nil {
		return nil, err
	}

	entries := make(map[models.Namespace]map[string]*entry, len(models.AllNamespaces()))
	for _, ns := range models.AllNamespaces() {
		entries[ns] = make(map[string]*entry)
	}

	b := &Blackboard{
		publisher:     events.NewPublisher(bus),
		bus:           bus,
		ttlRules:      ttlRules,
		invRules:      invRules,
		sweepInterval: cfg.SweepInterval,
		entries:       entries,
	}
	b.subID = bus.Subscribe(events.TopicStateInvalidate, b.handleInvalidate)
	return b, nil
}

// Read returns the entry at ns/key, or ErrNotFound. An entry past its
// expiry is removed on the spot and reported as not found. Successful
// reads update the entry's last-accessed time.
func (b *Blackboard) Read(ctx context.Context, ns models.Namespace, key string) (*Entry, error) {
	b.stats.reads.Add(1)
	now := time.Now()

	b.mu.Lock()
	m, ok := b.entries[ns]
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, ns)
	}
	e, ok := m[key]
	if !ok {
		b.mu.Unlock()
		b.stats.misses.Add(1)
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, ns, key)
	}
	if e.expired(now) {
		b.removeLocked(ns, key, e)
		b.mu.Unlock()
		b.stats.misses.Add(1)
		b.stats.expirations.Add(1)
		b.publishDelete(ctx, ns, key)
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, ns, key)
	}
	e.lastAccessed = now
	out := e.snapshot(ns, key)
	b.mu.Unlock()

	b.stats.hits.Add(1)
	return out, nil
}

// Write stores data at ns/key and returns its etag. Effective TTL:
// explicit option first, then the first matching configured rule, then
// none. Strong namespaces deliver the state-sync notification inline
// before Write returns; the state-changed announcement always follows
// asynchronously.
func (b *Blackboard) Write(ctx context.Context, ns models.Namespace, key string, data any, opts WriteOptions) (string, error) {
	etag, err := computeETag(data)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s/%s: %w", ns, key, err)
	}

	now := time.Now()
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = b.defaultTTL(ns, key)
	}

	b.mu.Lock()
	m, ok := b.entries[ns]
	if !ok {
		b.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownNamespace, ns)
	}

	e, exists := m[key]
	if !exists {
		e = &entry{createdAt: now}
		m[key] = e
	} else {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		// Overwriting an entry that already expired restarts its
		// lifecycle instead of resurrecting the old one.
		if e.expired(now) {
			e.createdAt = now
			e.version = 0
		}
	}

	e.data = data
	e.etag = etag
	e.lastModified = now
	e.lastAccessed = now
	if opts.Version > 0 {
		e.version = opts.Version
	} else {
		e.version++
	}
	version := e.version

	e.expiresAt = nil
	if ttl > 0 {
		exp := now.Add(ttl)
		e.expiresAt = &exp
		e.timer = time.AfterFunc(ttl, func() {
			b.expire(ns, key, version)
		})
	}
	b.mu.Unlock()

	b.stats.writes.Add(1)

	if ns.Consistency() == models.ConsistencyStrong {
		if err := b.publisher.PublishStateSync(ctx, events.StateSyncPayload{
			Namespace: string(ns),
			Key:       key,
			ETag:      etag,
			Version:   version,
		}); err != nil {
			slog.Warn("State-sync publish failed", "namespace", ns, "key", key, "error", err)
		}
	}
	b.publishWrite(ctx, ns, key, etag)
	return etag, nil
}

// Delete removes ns/key and reports whether an entry was removed.
func (b *Blackboard) Delete(ctx context.Context, ns models.Namespace, key string) (bool, error) {
	b.mu.Lock()
	m, ok := b.entries[ns]
	if !ok {
		b.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownNamespace, ns)
	}
	e, ok := m[key]
	if !ok {
		b.mu.Unlock()
		return false, nil
	}
	b.removeLocked(ns, key, e)
	b.mu.Unlock()

	b.stats.deletes.Add(1)
	b.publishDelete(ctx, ns, key)
	return true, nil
}

// Invalidate removes every entry in ns whose key matches the glob
// pattern and returns the removal count.
func (b *Blackboard) Invalidate(ctx context.Context, ns models.Namespace, pattern string) (int, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	return b.removeMatching(ctx, ns, g)
}

// Query returns entries in ns passing every set filter, sorted by key.
// Expired entries encountered during the scan are removed in-line and
// excluded from the result.
func (b *Blackboard) Query(ctx context.Context, ns models.Namespace, filter QueryFilter) ([]*Entry, error) {
	var g glob.Glob
	if filter.KeyPattern != "" {
		compiled, err := glob.Compile(filter.KeyPattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, filter.KeyPattern, err)
		}
		g = compiled
	}

	now := time.Now()
	b.mu.Lock()
	m, ok := b.entries[ns]
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, ns)
	}

	var out []*Entry
	var purged []string
	for key, e := range m {
		if e.expired(now) {
			b.removeLocked(ns, key, e)
			purged = append(purged, key)
			continue
		}
		if g != nil && !g.Match(key) {
			continue
		}
		if !filter.CreatedAfter.IsZero() && !e.createdAt.After(filter.CreatedAfter) {
			continue
		}
		if !filter.CreatedBefore.IsZero() && !e.createdAt.Before(filter.CreatedBefore) {
			continue
		}
		out = append(out, e.snapshot(ns, key))
	}
	b.mu.Unlock()

	if n := len(purged); n > 0 {
		b.stats.expirations.Add(int64(n))
		for _, key := range purged {
			b.publishDelete(ctx, ns, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Stats returns a snapshot of the access counters.
func (b *Blackboard) Stats() StatsSnapshot {
	return b.stats.snapshot()
}

// Len reports the number of live entries in ns, expiry-checked.
func (b *Blackboard) Len(ns models.Namespace) (int, error) {
	now := time.Now()
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.entries[ns]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownNamespace, ns)
	}
	count := 0
	for _, e := range m {
		if !e.expired(now) {
			count++
		}
	}
	return count, nil
}

// removeMatching deletes every entry in ns matching g, publishing one
// delete notification per removed entry. Counted as invalidations.
func (b *Blackboard) removeMatching(ctx context.Context, ns models.Namespace, g glob.Glob) (int, error) {
	b.mu.Lock()
	m, ok := b.entries[ns]
	if !ok {
		b.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrUnknownNamespace, ns)
	}
	var removed []string
	for key, e := range m {
		if g.Match(key) {
			b.removeLocked(ns, key, e)
			removed = append(removed, key)
		}
	}
	b.mu.Unlock()

	if n := len(removed); n > 0 {
		b.stats.invalidations.Add(int64(n))
		for _, key := range removed {
			b.publishDelete(ctx, ns, key)
		}
	}
	return len(removed), nil
}

// expire is the deferred-timer callback. The version check discards
// signals from timers superseded by a later write; removal still
// re-verifies the deadline defensively.
func (b *Blackboard) expire(ns models.Namespace, key string, version int64) {
	now := time.Now()
	b.mu.Lock()
	m, ok := b.entries[ns]
	if !ok {
		b.mu.Unlock()
		return
	}
	e, ok := m[key]
	if !ok || e.version != version || !e.expired(now) {
		b.mu.Unlock()
		return
	}
	b.removeLocked(ns, key, e)
	b.mu.Unlock()

	b.stats.expirations.Add(1)
	b.publishDelete(context.Background(), ns, key)
}

func (b *Blackboard) removeLocked(ns models.Namespace, key string, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	delete(b.entries[ns], key)
}

func (b *Blackboard) publishWrite(ctx context.Context, ns models.Namespace, key, etag string) {
	err := b.publisher.PublishStateChanged(ctx, events.StateChangedPayload{
		Namespace: string(ns),
		Key:       key,
		Operation: events.StateOperationWrite,
		ETag:      etag,
	})
	if err != nil {
		slog.Debug("State-changed publish failed", "namespace", ns, "key", key, "error", err)
	}
}

func (b *Blackboard) publishDelete(ctx context.Context, ns models.Namespace, key string) {
	err := b.publisher.PublishStateChanged(ctx, events.StateChangedPayload{
		Namespace: string(ns),
		Key:       key,
		Operation: events.StateOperationDelete,
	})
	if err != nil {
		slog.Debug("State-changed publish failed", "namespace", ns, "key", key, "error", err)
	}
}
