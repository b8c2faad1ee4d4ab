package notify

import "context"

// Notifier defines the interface for outbound messages.
type Notifier interface {
	// Send delivers a text message to one user
	Send(ctx context.Context, userID, text string) error

	// NotifyAdmin delivers a text message to the admin channel
	NotifyAdmin(ctx context.Context, text string) error
}
