package session

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/idrea/receipt-bot/internal/draft"
)

const draftsBucket = "drafts"

// BoltStore implements the Store interface using BoltDB. Each user id maps
// to at most one JSON-encoded draft, so the one-active-draft-per-user
// invariant holds by construction.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a new BoltStore instance
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(draftsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get retrieves the active draft for a user
func (b *BoltStore) Get(userID string) (*draft.ReceiptDraft, error) {
	var d *draft.ReceiptDraft
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(draftsBucket)).Get([]byte(userID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Put saves the active draft for a user
func (b *BoltStore) Put(userID string, d *draft.ReceiptDraft) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshaling draft: %w", err)
		}
		return tx.Bucket([]byte(draftsBucket)).Put([]byte(userID), data)
	})
}

// Delete removes a user's active draft
func (b *BoltStore) Delete(userID string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(draftsBucket)).Delete([]byte(userID))
	})
}

// EvictIdle removes drafts whose last update is older than olderThan. The
// whole sweep runs in one transaction, so it cannot interleave with a Put
// from a live message; a user message that lands after the sweep simply
// starts a fresh draft.
func (b *BoltStore) EvictIdle(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	evicted := 0
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(draftsBucket))
		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var d draft.ReceiptDraft
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("unmarshaling draft: %w", err)
			}
			if d.UpdatedAt.Before(cutoff) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		evicted = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return evicted, nil
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}
