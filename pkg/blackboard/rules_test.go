package blackboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

func TestCompileTTLRules_Errors(t *testing.T) {
	_, err := compileTTLRules([]config.TTLRule{{Namespace: "bogus", TTL: time.Minute}})
	assert.ErrorIs(t, err, ErrUnknownNamespace)

	_, err = compileTTLRules([]config.TTLRule{{KeyPattern: "[", TTL: time.Minute}})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestCompileInvalidationRules_Errors(t *testing.T) {
	_, err := compileInvalidationRules([]config.InvalidationRule{
		{Name: "r", ReasonPattern: "x*", Namespace: "bogus", KeyPattern: "*"},
	})
	assert.ErrorIs(t, err, ErrUnknownNamespace)

	_, err = compileInvalidationRules([]config.InvalidationRule{
		{Name: "r", ReasonPattern: "[", Namespace: "cache", KeyPattern: "*"},
	})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = compileInvalidationRules([]config.InvalidationRule{
		{Name: "r", ReasonPattern: "x*", Namespace: "cache", KeyPattern: "["},
	})
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

// The default rules purge candidates on price-drift reasons delivered
// over the bus; unrelated namespaces are untouched.
func TestBlackboard_InvalidationViaBus(t *testing.T) {
	b, bus := newTestBlackboard(t)
	ctx := context.Background()
	publisher := events.NewPublisher(bus)

	for _, key := range []string{"flights-ob-1", "hotels-alfama"} {
		_, err := b.Write(ctx, models.NamespaceCandidates, key, key, WriteOptions{})
		require.NoError(t, err)
	}
	_, err := b.Write(ctx, models.NamespaceCache, "reverify-meta", "data", WriteOptions{})
	require.NoError(t, err)

	err = publisher.PublishStateInvalidate(ctx, events.StateInvalidatePayload{Reason: "price-drift-over-5pct"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := b.Len(models.NamespaceCandidates)
		return err == nil && n == 0
	}, time.Second, 5*time.Millisecond)

	n, err := b.Len(models.NamespaceCache)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(2), b.Stats().Invalidations)
}

func TestBlackboard_InvalidationUnmatchedReasonIsNoop(t *testing.T) {
	b, bus := newTestBlackboard(t)
	ctx := context.Background()
	publisher := events.NewPublisher(bus)

	_, err := b.Write(ctx, models.NamespaceCandidates, "flights-ob-1", "fares", WriteOptions{})
	require.NoError(t, err)

	err = publisher.PublishStateInvalidate(ctx, events.StateInvalidatePayload{Reason: "unrelated-reason"})
	require.NoError(t, err)

	// Give delivery a moment, then confirm nothing was removed.
	time.Sleep(50 * time.Millisecond)
	n, err := b.Len(models.NamespaceCandidates)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, b.Stats().Invalidations)
}

func TestBlackboard_HandleInvalidateBadPayload(t *testing.T) {
	b, _ := newTestBlackboard(t)

	err := b.handleInvalidate(context.Background(), events.Envelope{
		Topic:   events.TopicStateInvalidate,
		Payload: "not-a-payload",
	})
	assert.Error(t, err)
}
