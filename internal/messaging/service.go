// Package messaging provides the outbound message delivery abstraction and
// the WaSender gateway client implementing it.
package messaging

import "context"

// Service defines a pluggable message delivery abstraction.
// Implementations send a single text to a single destination per call and
// do not retry; delivery is best-effort.
type Service interface {
	// SendMessage sends a text message to a recipient identifier.
	SendMessage(ctx context.Context, to string, body string) error
}
