package ledger

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/idrea/receipt-bot/internal/draft"
)

// Archiver defines the interface for archiving a raw receipt file.
type Archiver interface {
	// Archive stores the uploaded file and returns an opaque source
	// reference (a storage path or a remote link)
	Archive(ctx context.Context, filename string, data []byte, mimeType string) (string, error)
}

// Ledger defines the interface for durably recording a confirmed receipt.
type Ledger interface {
	// Commit records the draft and returns its receipt number. Commit is
	// idempotent on idempotencyKey: retrying after a failure whose first
	// attempt actually landed returns the already-issued number instead
	// of appending a second row.
	Commit(ctx context.Context, d *draft.ReceiptDraft, idempotencyKey string) (int, error)
}

var (
	specialChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames: special characters
// removed, whitespace collapsed, base truncated to a sane length.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = specialChars.ReplaceAllString(base, "")
	base = multiSpace.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}
