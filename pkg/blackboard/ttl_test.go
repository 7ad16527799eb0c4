package blackboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

func TestBlackboard_ExplicitTTLExpiry(t *testing.T) {
	b, bus := newTestBlackboard(t)
	ctx := context.Background()

	changes := &collector{}
	bus.Subscribe(events.TopicStateChanged, changes.handle)

	_, err := b.Write(ctx, models.NamespaceCache, "flights-quote", "stale-soon", WriteOptions{TTL: 100 * time.Millisecond})
	require.NoError(t, err)

	// Present before the deadline.
	_, err = b.Read(ctx, models.NamespaceCache, "flights-quote")
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	// Gone after the deadline.
	_, err = b.Read(ctx, models.NamespaceCache, "flights-quote")
	assert.ErrorIs(t, err, ErrNotFound)

	entries, err := b.Query(ctx, models.NamespaceCache, QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Exactly one delete notification for the expired entry: the write
	// event, then a single delete, no matter how many reads observed the
	// absence afterwards.
	require.Eventually(t, func() bool { return changes.count() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	envelopes := changes.all()
	require.Len(t, envelopes, 2)

	deletePayload, ok := envelopes[1].Payload.(events.StateChangedPayload)
	require.True(t, ok)
	assert.Equal(t, events.StateOperationDelete, deletePayload.Operation)
	assert.Equal(t, "flights-quote", deletePayload.Key)

	assert.Equal(t, int64(1), b.Stats().Expirations)
}

func TestBlackboard_DefaultTTLRules(t *testing.T) {
	b, _ := newTestBlackboard(t)

	// Key-pattern rules match in any namespace and come first.
	assert.Equal(t, 5*time.Minute, b.defaultTTL(models.NamespaceCandidates, "flights-ob-1"))
	assert.Equal(t, 5*time.Minute, b.defaultTTL(models.NamespaceSelections, "flights-ob-1"))
	assert.Equal(t, 30*time.Minute, b.defaultTTL(models.NamespaceCache, "hotels-alfama"))
	assert.Equal(t, 24*time.Hour, b.defaultTTL(models.NamespaceCache, "activities-tram28"))
	assert.Equal(t, 12*time.Hour, b.defaultTTL(models.NamespaceCache, "cars-compact"))

	// Namespace-wide rules catch what the key patterns miss.
	assert.Equal(t, 5*time.Minute, b.defaultTTL(models.NamespaceCandidates, "other"))
	assert.Equal(t, 30*time.Minute, b.defaultTTL(models.NamespaceSelections, "final"))
	assert.Equal(t, 24*time.Hour, b.defaultTTL(models.NamespaceMedia, "photos"))
	assert.Equal(t, time.Hour, b.defaultTTL(models.NamespaceCache, "misc"))

	// No matching rule means no expiry.
	assert.Zero(t, b.defaultTTL(models.NamespacePrefs, "budget"))
	assert.Zero(t, b.defaultTTL(models.NamespaceAudit, "trail"))
}

func TestBlackboard_RuleTTLApplied(t *testing.T) {
	b, _ := newTestBlackboard(t)
	ctx := context.Background()

	before := time.Now()
	_, err := b.Write(ctx, models.NamespaceCandidates, "flights-ob-1", "fares", WriteOptions{})
	require.NoError(t, err)

	entry, err := b.Read(ctx, models.NamespaceCandidates, "flights-ob-1")
	require.NoError(t, err)
	require.NotNil(t, entry.ExpiresAt)
	assert.WithinDuration(t, before.Add(5*time.Minute), *entry.ExpiresAt, time.Second)
}

func TestBlackboard_ExplicitTTLOverridesRules(t *testing.T) {
	b, _ := newTestBlackboard(t)
	ctx := context.Background()

	before := time.Now()
	_, err := b.Write(ctx, models.NamespaceCandidates, "flights-ob-1", "fares", WriteOptions{TTL: time.Hour})
	require.NoError(t, err)

	entry, err := b.Read(ctx, models.NamespaceCandidates, "flights-ob-1")
	require.NoError(t, err)
	require.NotNil(t, entry.ExpiresAt)
	assert.WithinDuration(t, before.Add(time.Hour), *entry.ExpiresAt, time.Second)
}

func TestBlackboard_RewriteDisarmsExpiry(t *testing.T) {
	b, _ := newTestBlackboard(t)
	ctx := context.Background()

	_, err := b.Write(ctx, models.NamespacePrefs, "budget", "v1", WriteOptions{TTL: 80 * time.Millisecond})
	require.NoError(t, err)

	// Rewrite without TTL; prefs has no default rule, so the entry no
	// longer expires and the superseded timer must not remove it.
	_, err = b.Write(ctx, models.NamespacePrefs, "budget", "v2", WriteOptions{})
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	entry, err := b.Read(ctx, models.NamespacePrefs, "budget")
	require.NoError(t, err)
	assert.Equal(t, "v2", entry.Data)
	assert.Nil(t, entry.ExpiresAt)
	assert.Zero(t, b.Stats().Expirations)
}

func TestBlackboard_SweeperRemovesExpired(t *testing.T) {
	b, bus := newTestBlackboard(t)
	ctx := context.Background()

	changes := &collector{}
	bus.Subscribe(events.TopicStateChanged, changes.handle)

	_, err := b.Write(ctx, models.NamespaceCache, "reverify-target", "data", WriteOptions{TTL: time.Hour})
	require.NoError(t, err)

	// Simulate a missed deferred timer: disarm it and backdate the
	// deadline, leaving the sweeper as the only removal path.
	b.mu.Lock()
	e := b.entries[models.NamespaceCache]["reverify-target"]
	e.timer.Stop()
	e.timer = nil
	past := time.Now().Add(-time.Minute)
	e.expiresAt = &past
	b.mu.Unlock()

	b.sweep(ctx)

	_, err = b.Read(ctx, models.NamespaceCache, "reverify-target")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), b.Stats().Expirations)

	// Write event plus exactly one sweeper delete.
	require.Eventually(t, func() bool { return changes.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestBlackboard_StartStopSweeper(t *testing.T) {
	b, _ := newTestBlackboard(t)

	b.Start(context.Background())
	// Idempotent start.
	b.Start(context.Background())
	b.Stop()
	// Idempotent stop after shutdown is a no-op.
	b.Stop()
}

func TestBlackboard_ExpiredOverwriteRestartsLifecycle(t *testing.T) {
	b, _ := newTestBlackboard(t)
	ctx := context.Background()

	_, err := b.Write(ctx, models.NamespacePrefs, "pace", "v1", WriteOptions{TTL: time.Hour})
	require.NoError(t, err)

	b.mu.Lock()
	e := b.entries[models.NamespacePrefs]["pace"]
	e.timer.Stop()
	e.timer = nil
	past := time.Now().Add(-time.Minute)
	e.expiresAt = &past
	b.mu.Unlock()

	// Overwriting the expired entry starts a fresh lifecycle.
	_, err = b.Write(ctx, models.NamespacePrefs, "pace", "v2", WriteOptions{})
	require.NoError(t, err)

	entry, err := b.Read(ctx, models.NamespacePrefs, "pace")
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Version)
	assert.Equal(t, "v2", entry.Data)
	assert.Nil(t, entry.ExpiresAt)
}
