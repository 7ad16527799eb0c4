package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespaceIsValid(t *testing.T) {
	for _, ns := range AllNamespaces() {
		assert.True(t, ns.IsValid(), "namespace %q", ns)
	}
	assert.False(t, Namespace("bookings").IsValid())
	assert.False(t, Namespace("").IsValid())
}

func TestNamespaceConsistency(t *testing.T) {
	assert.Equal(t, ConsistencyStrong, NamespaceSelections.Consistency())
	assert.Equal(t, ConsistencyStrong, NamespaceItinerary.Consistency())

	for _, ns := range AllNamespaces() {
		if ns == NamespaceSelections || ns == NamespaceItinerary {
			continue
		}
		assert.Equal(t, ConsistencyEventual, ns.Consistency(), "namespace %q", ns)
	}
}

func TestAllNamespacesCount(t *testing.T) {
	assert.Len(t, AllNamespaces(), 13)
}
