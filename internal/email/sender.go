package email

import "context"

// Message is one outbound transactional email. Body is self-contained HTML
// suitable for direct delivery.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
	ProviderID() string
}
