// Package notify holds the outbound channels the reminder scheduler
// dispatches through. Senders report "not sent" (false, nil) when their
// channel is not configured; only transport failures surface as errors.
package notify

import "context"

// EmailSender delivers reminder emails.
type EmailSender interface {
	// SendEmail returns whether the message was handed to the provider.
	SendEmail(ctx context.Context, to, subject, body string) (bool, error)
}

// SMSSender delivers reminder text messages.
type SMSSender interface {
	// Configured reports whether provider credentials are present. The
	// scheduler skips the SMS channel entirely when this is false.
	Configured() bool
	SendSMS(ctx context.Context, to, body string) (bool, error)
}
