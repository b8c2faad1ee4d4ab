package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/idrea/receipt-bot/internal/draft"
	"github.com/idrea/receipt-bot/internal/extraction"
	"github.com/idrea/receipt-bot/internal/ledger"
	"github.com/idrea/receipt-bot/internal/notify"
	"github.com/idrea/receipt-bot/internal/session"
)

// MessageType classifies an inbound message.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageDocument MessageType = "document"
)

// Message is one inbound message from a user, already stripped of
// transport framing.
type Message struct {
	UserID   string
	Name     string
	Type     MessageType
	Text     string
	Filename string
	MimeType string
	Data     []byte
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config holds the tunable dialogue parameters.
type Config struct {
	// IdleTimeout cancels drafts with no activity for this long. Zero
	// disables expiry.
	IdleTimeout time.Duration

	// ExtractTimeout bounds one extraction call.
	ExtractTimeout time.Duration

	// LooseCorrections accepts "amount 42.50" without a separator.
	LooseCorrections bool
}

// Controller drives a user through capture, extraction, review and commit.
// All processing for one user runs under that user's lock, so two messages
// from the same user are applied strictly in arrival order.
type Controller struct {
	store      session.Store
	locks      *session.Locks
	extractor  extraction.Extractor
	archiver   ledger.Archiver
	ledger     ledger.Ledger
	notifier   notify.Notifier
	cfg        Config
	timeSource TimeSource
}

// NewController creates a new Controller with the default time source
func NewController(store session.Store, extractor extraction.Extractor, archiver ledger.Archiver, book ledger.Ledger, notifier notify.Notifier, cfg Config) *Controller {
	return NewControllerWithDeps(store, extractor, archiver, book, notifier, cfg, &defaultTimeSource{})
}

// NewControllerWithDeps creates a new Controller with a custom time source for testing
func NewControllerWithDeps(store session.Store, extractor extraction.Extractor, archiver ledger.Archiver, book ledger.Ledger, notifier notify.Notifier, cfg Config, timeSource TimeSource) *Controller {
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 60 * time.Second
	}
	return &Controller{
		store:      store,
		locks:      session.NewLocks(),
		extractor:  extractor,
		archiver:   archiver,
		ledger:     book,
		notifier:   notifier,
		cfg:        cfg,
		timeSource: timeSource,
	}
}

// HandleMessage applies one inbound message to the sender's conversation.
// Errors returned here are infrastructure failures; anything the user can
// act on has already been messaged to them.
func (c *Controller) HandleMessage(ctx context.Context, msg Message) error {
	unlock := c.locks.Lock(msg.UserID)
	defer unlock()

	now := c.timeSource.Now()

	d, err := c.store.Get(msg.UserID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("loading draft: %w", err)
	}

	// An expired draft is treated as absent; the sweeper may not have
	// gotten to it yet.
	if d != nil && d.Expired(now, c.cfg.IdleTimeout) {
		if err := c.store.Delete(msg.UserID); err != nil {
			return fmt.Errorf("removing expired draft: %w", err)
		}
		slog.Info("Draft expired", "user", msg.UserID)
		d = nil
	}

	switch msg.Type {
	case MessageImage, MessageDocument:
		return c.handleReceiptFile(ctx, msg, now)
	case MessageText:
		if d == nil {
			return c.handleIdleText(ctx, msg, now)
		}
		switch d.Status {
		case draft.StatusCollecting:
			return c.handleCollectingText(ctx, d, msg, now)
		case draft.StatusAwaitingConfirmation:
			return c.handleConfirmationText(ctx, d, msg, now)
		default:
			// Terminal drafts never stay in the store; treat as idle.
			return c.handleIdleText(ctx, msg, now)
		}
	default:
		c.send(ctx, msg.UserID, msgIdleHelp)
		return nil
	}
}

// handleReceiptFile starts a new capture from an uploaded image or PDF,
// replacing any draft the user had in flight.
func (c *Controller) handleReceiptFile(ctx context.Context, msg Message, now time.Time) error {
	c.notifyAdmin(ctx, fmt.Sprintf("%s sent a %s (%s)", senderName(msg), msg.Type, msg.Filename))

	ref, err := c.archiver.Archive(ctx, msg.Filename, msg.Data, msg.MimeType)
	if err != nil {
		slog.Error("Failed to archive receipt file",
			"user", msg.UserID,
			"filename", msg.Filename,
			"error", err,
		)
		// The prior draft, if any, is left untouched: a capture only
		// replaces it once the new file is safely archived.
		c.send(ctx, msg.UserID, msgArchiveFailed)
		return nil
	}

	d := draft.New(msg.UserID, now)
	d.SourceRef = ref

	extractCtx, cancel := context.WithTimeout(ctx, c.cfg.ExtractTimeout)
	fields, err := c.extractor.Extract(extractCtx, msg.Data, msg.MimeType)
	cancel()
	if err != nil {
		slog.Error("Extraction failed",
			"user", msg.UserID,
			"mime_type", msg.MimeType,
			"file_size", len(msg.Data),
			"error", err,
		)
		c.notifyAdmin(ctx, fmt.Sprintf("Extraction failed for %s: %v", senderName(msg), err))

		// Degrade to manual entry; the archived file is kept.
		if err := c.store.Put(msg.UserID, d); err != nil {
			return fmt.Errorf("saving draft: %w", err)
		}
		c.send(ctx, msg.UserID, msgExtractionFailed)
		c.send(ctx, msg.UserID, msgFieldPrompt(draft.FieldOrder[0]))
		return nil
	}

	d.Fields = fields
	d.Status = draft.StatusAwaitingConfirmation
	d.UpdatedAt = now
	if err := c.store.Put(msg.UserID, d); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}

	c.send(ctx, msg.UserID, msgSummary(d))
	return nil
}

// handleIdleText handles text from a user with no active draft.
func (c *Controller) handleIdleText(ctx context.Context, msg Message, now time.Time) error {
	if manualWords[keyword(msg.Text)] {
		d := draft.New(msg.UserID, now)
		if err := c.store.Put(msg.UserID, d); err != nil {
			return fmt.Errorf("saving draft: %w", err)
		}
		c.send(ctx, msg.UserID, msgFieldPrompt(draft.FieldOrder[0]))
		return nil
	}

	c.notifyAdmin(ctx, fmt.Sprintf("%s sent:\n\n%s", senderName(msg), msg.Text))
	c.send(ctx, msg.UserID, msgIdleHelp)
	return nil
}

// handleCollectingText consumes one manual-entry answer.
func (c *Controller) handleCollectingText(ctx context.Context, d *draft.ReceiptDraft, msg Message, now time.Time) error {
	if cancelWords[keyword(msg.Text)] {
		return c.cancel(ctx, d)
	}

	field := draft.FieldOrder[d.Cursor]
	answer := strings.TrimSpace(msg.Text)

	if !skipWords[keyword(answer)] {
		if err := d.Set(field, answer); err != nil {
			if errors.Is(err, draft.ErrNotNumeric) {
				c.send(ctx, msg.UserID, msgBadAmount(field))
				return nil
			}
			return fmt.Errorf("storing answer: %w", err)
		}
	}

	d.Cursor++
	d.UpdatedAt = now

	if d.Cursor < len(draft.FieldOrder) {
		if err := c.store.Put(msg.UserID, d); err != nil {
			return fmt.Errorf("saving draft: %w", err)
		}
		c.send(ctx, msg.UserID, msgFieldPrompt(draft.FieldOrder[d.Cursor]))
		return nil
	}

	d.Status = draft.StatusAwaitingConfirmation
	if err := c.store.Put(msg.UserID, d); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	c.send(ctx, msg.UserID, msgSummary(d))
	return nil
}

// handleConfirmationText resolves a yes/no/correction while the summary is
// on the table.
func (c *Controller) handleConfirmationText(ctx context.Context, d *draft.ReceiptDraft, msg Message, now time.Time) error {
	word := keyword(msg.Text)

	if confirmWords[word] {
		return c.commit(ctx, d, now)
	}

	if cancelWords[word] {
		return c.cancel(ctx, d)
	}

	correction, err := draft.ParseCorrection(msg.Text, c.cfg.LooseCorrections)
	if err != nil {
		var unknown *draft.UnknownFieldError
		if errors.As(err, &unknown) {
			c.send(ctx, msg.UserID, msgUnknownField(unknown.Name))
		} else {
			c.send(ctx, msg.UserID, msgClarify+"\n\n"+draft.Render(d))
		}
		return nil
	}

	if err := d.Set(correction.Field, correction.Value); err != nil {
		if errors.Is(err, draft.ErrNotNumeric) {
			c.send(ctx, msg.UserID, msgBadAmount(correction.Field))
			return nil
		}
		return fmt.Errorf("applying correction: %w", err)
	}

	d.UpdatedAt = now
	if err := c.store.Put(d.UserID, d); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	c.send(ctx, d.UserID, msgSummary(d))
	return nil
}

// commit records the draft through the ledger. The draft's attempt id is
// the idempotency key, so a retry after a half-failed commit can never
// produce a second row or a second number.
func (c *Controller) commit(ctx context.Context, d *draft.ReceiptDraft, now time.Time) error {
	number, err := c.ledger.Commit(ctx, d, d.AttemptID)
	if err != nil {
		slog.Error("Commit failed", "user", d.UserID, "attempt_id", d.AttemptID, "error", err)
		c.notifyAdmin(ctx, fmt.Sprintf("Commit failed for %s: %v", d.UserID, err))

		// Keep the draft confirmable; bump the clock so a retry is not
		// eaten by the idle timeout.
		d.UpdatedAt = now
		if putErr := c.store.Put(d.UserID, d); putErr != nil {
			return fmt.Errorf("saving draft after failed commit: %w", putErr)
		}
		c.send(ctx, d.UserID, msgCommitFailed)
		return nil
	}

	d.ReceiptNumber = number
	d.Status = draft.StatusConfirmed
	if err := c.store.Delete(d.UserID); err != nil {
		return fmt.Errorf("removing confirmed draft: %w", err)
	}

	slog.Info("Receipt committed", "user", d.UserID, "number", number)
	c.send(ctx, d.UserID, msgConfirmed(number))

	adminNote := fmt.Sprintf("Receipt #%d recorded for %s", number, d.UserID)
	if d.SourceRef != "" {
		adminNote += "\n" + d.SourceRef
	}
	c.notifyAdmin(ctx, adminNote)
	return nil
}

// cancel discards the draft and acknowledges.
func (c *Controller) cancel(ctx context.Context, d *draft.ReceiptDraft) error {
	d.Status = draft.StatusCancelled
	if err := c.store.Delete(d.UserID); err != nil {
		return fmt.Errorf("removing cancelled draft: %w", err)
	}
	c.send(ctx, d.UserID, msgCancelled)
	return nil
}

// send delivers a message to the user; delivery failures are logged, never
// allowed to abort the conversation turn.
func (c *Controller) send(ctx context.Context, userID, text string) {
	if err := c.notifier.Send(ctx, userID, text); err != nil {
		slog.Error("Failed to send message", "user", userID, "error", err)
	}
}

func (c *Controller) notifyAdmin(ctx context.Context, text string) {
	if err := c.notifier.NotifyAdmin(ctx, text); err != nil {
		slog.Error("Failed to notify admins", "error", err)
	}
}

func keyword(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func senderName(msg Message) string {
	if msg.Name != "" {
		return msg.Name
	}
	return msg.UserID
}
