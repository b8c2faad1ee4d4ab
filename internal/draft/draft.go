package draft

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a receipt draft.
type Status string

const (
	StatusCollecting           Status = "collecting"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusConfirmed            Status = "confirmed"
	StatusCancelled            Status = "cancelled"
)

// Recognized field names.
const (
	FieldWhat          = "what"
	FieldAmount        = "amount"
	FieldVAT           = "vat"
	FieldStore         = "store"
	FieldPaymentMethod = "payment_method"
	FieldChargeTo      = "charge_to"
	FieldComments      = "comments"
)

// FieldOrder is the order fields are prompted for during manual entry and
// listed in the rendered summary.
var FieldOrder = []string{
	FieldWhat,
	FieldAmount,
	FieldVAT,
	FieldStore,
	FieldPaymentMethod,
	FieldChargeTo,
	FieldComments,
}

// Fields maps a recognized field name to its value. Unset fields are absent.
type Fields map[string]string

// ReceiptDraft is one in-flight receipt capture attempt for a single user.
type ReceiptDraft struct {
	UserID        string    `json:"user_id"`
	ReceiptNumber int       `json:"receipt_number,omitempty"`
	Fields        Fields    `json:"fields"`
	SourceRef     string    `json:"source_ref,omitempty"`
	Status        Status    `json:"status"`
	AttemptID     string    `json:"attempt_id"`
	Cursor        int       `json:"cursor"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// New creates a fresh collecting draft for a user. The attempt ID is minted
// once here and reused for every commit retry of this draft.
func New(userID string, now time.Time) *ReceiptDraft {
	return &ReceiptDraft{
		UserID:    userID,
		Fields:    make(Fields),
		Status:    StatusCollecting,
		AttemptID: uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Recognized reports whether name is a known field.
func Recognized(name string) bool {
	for _, f := range FieldOrder {
		if f == name {
			return true
		}
	}
	return false
}

// Numeric reports whether a field only accepts numeric values.
func Numeric(name string) bool {
	return name == FieldAmount || name == FieldVAT
}

// Set stores a field value, normalizing amounts. Unknown field names are
// rejected so a typo can never end up persisted.
func (d *ReceiptDraft) Set(name, value string) error {
	if !Recognized(name) {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if Numeric(name) {
		normalized, err := NormalizeAmount(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		value = normalized
	}
	d.Fields[name] = value
	return nil
}

// Expired reports whether the draft has been idle longer than timeout.
// A zero timeout disables expiry.
func (d *ReceiptDraft) Expired(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return now.Sub(d.UpdatedAt) > timeout
}
