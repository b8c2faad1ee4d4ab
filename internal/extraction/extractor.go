package extraction

import (
	"context"

	"github.com/idrea/receipt-bot/internal/draft"
)

// Extractor defines the interface for deriving receipt fields from an
// uploaded image or PDF.
type Extractor interface {
	// Extract analyzes a receipt file and returns the fields it could
	// read. Fields the model cannot see are simply absent, never guessed.
	Extract(ctx context.Context, data []byte, mimeType string) (draft.Fields, error)

	// Close closes the extractor and releases resources
	Close() error
}
