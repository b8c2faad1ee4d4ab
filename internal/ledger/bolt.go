package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/idrea/receipt-bot/internal/draft"
)

const (
	receiptsBucket = "receipts"
	commitsBucket  = "commits"
)

// committedReceipt is the durable record of one confirmed receipt.
type committedReceipt struct {
	Number      int          `json:"number"`
	UserID      string       `json:"user_id"`
	Fields      draft.Fields `json:"fields"`
	SourceRef   string       `json:"source_ref,omitempty"`
	CommittedAt time.Time    `json:"committed_at"`
}

// BoltLedger implements the Ledger interface using BoltDB. Numbers come
// from the bucket sequence, so they are unique and monotonic; the commits
// bucket maps idempotency keys to already-issued numbers.
type BoltLedger struct {
	db *bbolt.DB
}

// NewBoltLedger creates a new BoltLedger instance
func NewBoltLedger(path string) (*BoltLedger, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(receiptsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(commitsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltLedger{db: db}, nil
}

// Commit records the draft and returns its receipt number. Lookup, number
// assignment and the write happen in one transaction, so a retried commit
// can never issue a second number.
func (b *BoltLedger) Commit(_ context.Context, d *draft.ReceiptDraft, idempotencyKey string) (int, error) {
	var number int
	err := b.db.Update(func(tx *bbolt.Tx) error {
		commits := tx.Bucket([]byte(commitsBucket))
		if v := commits.Get([]byte(idempotencyKey)); v != nil {
			n, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("corrupt commit record: %w", err)
			}
			number = n
			return nil
		}

		receipts := tx.Bucket([]byte(receiptsBucket))
		seq, err := receipts.NextSequence()
		if err != nil {
			return fmt.Errorf("assigning receipt number: %w", err)
		}
		number = int(seq)

		record := committedReceipt{
			Number:      number,
			UserID:      d.UserID,
			Fields:      d.Fields,
			SourceRef:   d.SourceRef,
			CommittedAt: time.Now(),
		}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		if err := receipts.Put([]byte(strconv.Itoa(number)), data); err != nil {
			return err
		}
		return commits.Put([]byte(idempotencyKey), []byte(strconv.Itoa(number)))
	})
	if err != nil {
		return 0, err
	}
	return number, nil
}

// Close closes the database connection
func (b *BoltLedger) Close() error {
	return b.db.Close()
}
