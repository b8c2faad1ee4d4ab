package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/idrea/receipt-bot/internal/draft"
)

// Sheet column layout: A number, B timestamp, C idempotency key, D user,
// E..K the recognized fields in order, L source ref.
const sheetAppendRange = "A:L"

// SheetsLedger implements the Ledger interface by appending rows to a
// Google Sheet, numbering receipts max-existing-plus-one the way the
// original sheet flow did. Commits are serialized through mu: the sheet has
// no compare-and-append, so max-plus-one is only safe while this single
// instance is the only writer.
type SheetsLedger struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	mu            sync.Mutex
}

// NewSheetsLedger creates a new SheetsLedger instance
func NewSheetsLedger(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*SheetsLedger, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return NewSheetsLedgerWithService(svc, spreadsheetID, sheetName), nil
}

// NewSheetsLedgerWithService creates a new SheetsLedger over an existing
// service for testing
func NewSheetsLedgerWithService(svc *sheets.Service, spreadsheetID, sheetName string) *SheetsLedger {
	if sheetName == "" {
		sheetName = "Receipts"
	}
	return &SheetsLedger{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// Commit appends the draft as a new row and returns its receipt number.
// The existing rows are scanned first: if the idempotency key is already
// present the prior attempt landed, and its number is returned instead of
// appending a duplicate. The read-scan-append runs under mu so two users
// confirming at the same time cannot both read the same max and share a
// number.
func (l *SheetsLedger) Commit(ctx context.Context, d *draft.ReceiptDraft, idempotencyKey string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	readRange := fmt.Sprintf("%s!A2:C", l.sheetName)
	resp, err := l.svc.Spreadsheets.Values.Get(l.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("reading sheet: %w", err)
	}

	maxNumber := 0
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		n, convErr := strconv.Atoi(fmt.Sprint(row[0]))
		if convErr != nil {
			continue
		}
		if len(row) > 2 && fmt.Sprint(row[2]) == idempotencyKey {
			return n, nil
		}
		if n > maxNumber {
			maxNumber = n
		}
	}
	number := maxNumber + 1

	row := []interface{}{
		number,
		time.Now().Format("2006-01-02 15:04"),
		idempotencyKey,
		d.UserID,
	}
	for _, field := range draft.FieldOrder {
		row = append(row, d.Fields[field])
	}
	row = append(row, d.SourceRef)

	body := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err = l.svc.Spreadsheets.Values.
		Append(l.spreadsheetID, fmt.Sprintf("%s!%s", l.sheetName, sheetAppendRange), body).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("appending to sheet: %w", err)
	}

	return number, nil
}
