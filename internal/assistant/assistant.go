package assistant

import (
	"context"
)

// Responder answers a chat message. The message may carry a feed context
// block appended after the user's own text.
type Responder interface {
	Respond(ctx context.Context, message string) (string, error)
}
