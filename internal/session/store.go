package session

import (
	"errors"
	"time"

	"github.com/idrea/receipt-bot/internal/draft"
)

// ErrNotFound is returned by Get when a user has no active draft.
var ErrNotFound = errors.New("no active draft")

// Store defines the interface for the per-user draft store.
type Store interface {
	// Get retrieves the active draft for a user, or ErrNotFound
	Get(userID string) (*draft.ReceiptDraft, error)

	// Put saves the active draft for a user, replacing any prior one
	Put(userID string, d *draft.ReceiptDraft) error

	// Delete removes a user's active draft
	Delete(userID string) error

	// EvictIdle removes drafts idle for longer than olderThan and
	// returns how many were removed
	EvictIdle(olderThan time.Duration) (int, error)

	// Close closes the store
	Close() error
}
