package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaiter_FirstResolutionWins(t *testing.T) {
	w := newWaiter()
	require.True(t, w.resolve(stageResult{outputs: map[string]any{"k": 1}}))
	assert.False(t, w.resolve(stageResult{err: errors.New("late")}))

	res := <-w.ch
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.outputs["k"])
}

func TestWaiter_AbandonBlocksLateResolve(t *testing.T) {
	w := newWaiter()
	require.True(t, w.abandon())
	assert.False(t, w.resolve(stageResult{}))
	select {
	case <-w.ch:
		t.Fatal("abandoned waiter must not receive results")
	default:
	}
}

func TestWaiter_AbandonAfterResolveReportsBufferedResult(t *testing.T) {
	w := newWaiter()
	require.True(t, w.resolve(stageResult{outputs: map[string]any{"k": "v"}}))

	// abandon lost the race: the result is already buffered and the
	// dispatcher must drain it.
	assert.False(t, w.abandon())
	res := <-w.ch
	assert.Equal(t, "v", res.outputs["k"])
}

func TestWaiterTable_InstallResolveRemove(t *testing.T) {
	table := newWaiterTable()
	key := waiterKey{sagaID: "s", stepID: "plan", attempt: 0}
	w := table.install(key)
	require.Equal(t, 1, table.len())

	require.True(t, table.resolve(key, stageResult{outputs: map[string]any{"n": 7}}))
	res := <-w.ch
	assert.Equal(t, 7, res.outputs["n"])

	table.remove(key)
	assert.Equal(t, 0, table.len())
	assert.False(t, table.resolve(key, stageResult{}))
}

func TestWaiterTable_ResolveUnknownKey(t *testing.T) {
	table := newWaiterTable()
	assert.False(t, table.resolve(waiterKey{sagaID: "ghost", stepID: "x", attempt: 3}, stageResult{}))
}

func TestWaiterTable_DistinctAttemptsAreIndependent(t *testing.T) {
	table := newWaiterTable()
	first := waiterKey{sagaID: "s", stepID: "plan", attempt: 0}
	second := waiterKey{sagaID: "s", stepID: "plan", attempt: 1}
	table.install(first)
	w2 := table.install(second)

	// A reply addressed to the superseded attempt must not reach the
	// current one.
	require.True(t, table.resolve(first, stageResult{err: errors.New("stale")}))
	select {
	case <-w2.ch:
		t.Fatal("result for attempt 0 leaked into attempt 1")
	default:
	}
}
