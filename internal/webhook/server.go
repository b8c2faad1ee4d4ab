package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/idrea/receipt-bot/internal/dialogue"
	"github.com/idrea/receipt-bot/internal/notify"
)

// Handler consumes one inbound message.
type Handler interface {
	HandleMessage(ctx context.Context, msg dialogue.Message) error
}

// MediaFetcher resolves and downloads inbound media attachments.
type MediaFetcher interface {
	MediaURL(ctx context.Context, mediaID string) (string, error)
	Download(ctx context.Context, url string) ([]byte, string, error)
}

const msgDownloadFailed = "Sorry, I couldn't download your file. Please send it again."

// processTimeout bounds the background handling of one inbound message,
// extraction and ledger calls included.
const processTimeout = 3 * time.Minute

// Server handles WhatsApp webhook HTTP requests
type Server struct {
	handler     Handler
	media       MediaFetcher
	notifier    notify.Notifier
	verifyToken string
	version     string
	mux         *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(handler Handler, media MediaFetcher, notifier notify.Notifier, verifyToken, version string) *Server {
	return NewServerWithMux(handler, media, notifier, verifyToken, version, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(handler Handler, media MediaFetcher, notifier notify.Notifier, verifyToken, version string, mux *http.ServeMux) *Server {
	s := &Server{
		handler:     handler,
		media:       media,
		notifier:    notifier,
		verifyToken: verifyToken,
		version:     version,
		mux:         mux,
	}
	s.registerRoutes()
	return s
}

// registerRoutes registers all webhook routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /webhook", s.handleVerify)
	s.mux.HandleFunc("POST /webhook", s.handleNotification)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// handleVerify answers the subscription handshake. Meta sends the verify
// token it was configured with and expects the challenge echoed back.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != s.verifyToken {
		slog.Warn("Webhook verification failed", "mode", mode)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	slog.Info("Webhook verified")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, challenge)
}

// handleNotification accepts an event batch. The batch is acknowledged
// immediately and each message is processed in the background, because Meta
// retries deliveries that do not get a fast 200.
func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	var n notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		slog.Warn("Failed to decode webhook body", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if n.Object != "whatsapp_business_account" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	// Group messages per sender: one user's messages are handled strictly
	// in arrival order, different users proceed concurrently.
	byUser := make(map[string][]inboundMessage)
	var order []string
	names := make(map[string]string)
	for _, e := range n.Entry {
		for _, c := range e.Changes {
			for id, name := range contactNames(c.Value.Contacts) {
				names[id] = name
			}
			for _, m := range c.Value.Messages {
				if _, ok := byUser[m.From]; !ok {
					order = append(order, m.From)
				}
				byUser[m.From] = append(byUser[m.From], m)
			}
			// Delivery statuses carry nothing actionable.
			if len(c.Value.Statuses) > 0 {
				slog.Debug("Ignoring status updates", "count", len(c.Value.Statuses))
			}
		}
	}
	for _, from := range order {
		msgs := byUser[from]
		name := names[from]
		go func() {
			for _, m := range msgs {
				s.process(m, name)
			}
		}()
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// handleHealth returns service health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// process converts one webhook message and hands it to the dialogue
// handler. Runs detached from the webhook request.
func (s *Server) process(m inboundMessage, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	userID := "+" + m.From

	msg := dialogue.Message{
		UserID: userID,
		Name:   name,
	}

	switch m.Type {
	case "text":
		if m.Text == nil {
			slog.Warn("Text message without body", "user", userID)
			return
		}
		msg.Type = dialogue.MessageText
		msg.Text = m.Text.Body

	case "image":
		if m.Image == nil {
			slog.Warn("Image message without media", "user", userID)
			return
		}
		msg.Type = dialogue.MessageImage
		msg.Filename = "receipt.jpg"
		if !s.attachMedia(ctx, &msg, m.Image) {
			return
		}

	case "document":
		if m.Document == nil {
			slog.Warn("Document message without media", "user", userID)
			return
		}
		msg.Type = dialogue.MessageDocument
		msg.Filename = m.Document.Filename
		if msg.Filename == "" {
			msg.Filename = "receipt.pdf"
		}
		if !s.attachMedia(ctx, &msg, m.Document) {
			return
		}

	default:
		slog.Info("Ignoring unsupported message type", "user", userID, "type", m.Type)
		return
	}

	if err := s.handler.HandleMessage(ctx, msg); err != nil {
		slog.Error("Failed to handle message", "user", userID, "type", m.Type, "error", err)
	}
}

// attachMedia downloads the attachment into the message. On failure the
// user is asked to resend and false is returned.
func (s *Server) attachMedia(ctx context.Context, msg *dialogue.Message, med *media) bool {
	url, err := s.media.MediaURL(ctx, med.ID)
	if err != nil {
		slog.Error("Failed to resolve media url", "user", msg.UserID, "media_id", med.ID, "error", err)
		s.apologize(ctx, msg.UserID)
		return false
	}

	data, contentType, err := s.media.Download(ctx, url)
	if err != nil {
		slog.Error("Failed to download media", "user", msg.UserID, "media_id", med.ID, "error", err)
		s.apologize(ctx, msg.UserID)
		return false
	}

	msg.Data = data
	msg.MimeType = med.MimeType
	if msg.MimeType == "" {
		msg.MimeType = contentType
	}
	return true
}

func (s *Server) apologize(ctx context.Context, userID string) {
	if err := s.notifier.Send(ctx, userID, msgDownloadFailed); err != nil {
		slog.Error("Failed to send download apology", "user", userID, "error", err)
	}
}

// contactNames maps wa_id to profile name for the batch.
func contactNames(contacts []contact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		names[c.WaID] = c.Profile.Name
	}
	return names
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
