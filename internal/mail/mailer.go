package mail

import "context"

type Email struct {
	To       string            `json:"to"`
	From     string            `json:"from"`
	Subject  string            `json:"subject"`
	TextBody string            `json:"textBody"`
	HTMLBody string            `json:"htmlBody"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// Mailer is the outbound transport. How it connects (SMTP, provider API)
// is the implementation's business; the engine only sees success/failure.
type Mailer interface {
	Send(ctx context.Context, email Email) (providerMessageID string, err error)
}
