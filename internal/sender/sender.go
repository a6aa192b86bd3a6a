// Package sender implements the send capability against the messaging agent.
package sender

import "context"

// Sender delivers one text message to a canonical digits-only phone number.
type Sender interface {
	Send(ctx context.Context, phone, body string) error
}
