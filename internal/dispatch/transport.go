package dispatch

import "context"

// Outcome of one delivery attempt that reached the provider.
type Outcome string

const (
	// OutcomeDelivered means the provider confirmed delivery.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeSent means the provider accepted the message without a
	// delivery confirmation.
	OutcomeSent Outcome = "sent"
)

// Transport is the outbound messaging provider, consumed as a black box.
// A non-nil error marks the recipient as failed with that reason.
type Transport interface {
	Send(ctx context.Context, phone, body string) (Outcome, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, phone, body string) (Outcome, error)

func (f TransportFunc) Send(ctx context.Context, phone, body string) (Outcome, error) {
	return f(ctx, phone, body)
}
