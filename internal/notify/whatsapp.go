package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// WhatsApp sends messages through the WhatsApp Cloud API and fetches
// inbound media from it.
type WhatsApp struct {
	baseURL       string
	token         string
	phoneNumberID string
	version       string
	admins        []string
	client        *http.Client
}

// NewWhatsApp creates a new WhatsApp client. baseURL and version fall back
// to the Graph API defaults when empty; admins receive NotifyAdmin fan-out.
func NewWhatsApp(baseURL, token, phoneNumberID, version string, admins []string) (*WhatsApp, error) {
	if token == "" {
		return nil, fmt.Errorf("whatsapp access token is required")
	}
	if phoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp phone number id is required")
	}
	if baseURL == "" {
		baseURL = "https://graph.facebook.com"
	}
	if version == "" {
		version = "v18.0"
	}

	return &WhatsApp{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		token:         token,
		phoneNumberID: phoneNumberID,
		version:       version,
		admins:        admins,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// textMessage is the Cloud API body for an outbound text message.
type textMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             messageText `json:"text"`
}

type messageText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// Send delivers a text message to one user
func (w *WhatsApp) Send(ctx context.Context, userID, text string) error {
	body := textMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               userID,
		Type:             "text",
		Text:             messageText{Body: text},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", w.baseURL, w.version, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling whatsapp API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// NotifyAdmin fans the message out to every configured admin. A failure to
// reach one admin is logged and does not stop delivery to the rest.
func (w *WhatsApp) NotifyAdmin(ctx context.Context, text string) error {
	var lastErr error
	for _, admin := range w.admins {
		if err := w.Send(ctx, admin, text); err != nil {
			slog.Error("Failed to notify admin", "admin", admin, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// MediaURL looks up the ephemeral download URL for an inbound media id.
func (w *WhatsApp) MediaURL(ctx context.Context, mediaID string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s", w.baseURL, w.version, mediaID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching media url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("media lookup error (status %d): %s", resp.StatusCode, string(body))
	}

	var media struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return "", fmt.Errorf("decoding media response: %w", err)
	}
	if media.URL == "" {
		return "", fmt.Errorf("media response had no url")
	}
	return media.URL, nil
}

// Download fetches media content from a URL returned by MediaURL and
// returns the bytes with their content type.
func (w *WhatsApp) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("downloading media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media download error (status %d)", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading media body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
