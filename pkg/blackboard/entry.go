package blackboard

import (
	"time"

	"github.com/tripsmith/tripsmith/pkg/models"
)

// Entry is the caller-facing view of one blackboard record. Consistency
// is derived from the namespace, never stored per entry.
type Entry struct {
	Namespace    models.Namespace   `json:"namespace"`
	Key          string             `json:"key"`
	Data         any                `json:"data"`
	CreatedAt    time.Time          `json:"created_at"`
	LastModified time.Time          `json:"last_modified"`
	LastAccessed time.Time          `json:"last_accessed"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
	Version      int64              `json:"version"`
	ETag         string             `json:"etag"`
	Consistency  models.Consistency `json:"consistency"`
}

// entry is the stored record. All fields are guarded by the store lock;
// the timer is the deferred expiry signal armed at write time.
type entry struct {
	data         any
	etag         string
	createdAt    time.Time
	lastModified time.Time
	lastAccessed time.Time
	expiresAt    *time.Time
	version      int64
	timer        *time.Timer
}

func (e *entry) expired(now time.Time) bool {
	return e.expiresAt != nil && !now.Before(*e.expiresAt)
}

// snapshot copies the record into its exported form. Data is shared, not
// deep-copied; callers treat payloads as read-only.
func (e *entry) snapshot(ns models.Namespace, key string) *Entry {
	out := &Entry{
		Namespace:    ns,
		Key:          key,
		Data:         e.data,
		CreatedAt:    e.createdAt,
		LastModified: e.lastModified,
		LastAccessed: e.lastAccessed,
		Version:      e.version,
		ETag:         e.etag,
		Consistency:  ns.Consistency(),
	}
	if e.expiresAt != nil {
		exp := *e.expiresAt
		out.ExpiresAt = &exp
	}
	return out
}
