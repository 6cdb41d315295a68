package chat

import "context"

// Member is a connection that can sit in a room
type Member interface {
	Username() string
	// Send delivers one line to the member's connection
	Send(line string) error
	// Connected reports whether the underlying transport is still open
	Connected() bool
}

// Responder generates AI replies for a room
type Responder interface {
	Respond(ctx context.Context, basePrompt string, history []string) (string, error)
}

// Reply is the outcome of one AI generation
type Reply struct {
	Text string
	Err  error
}
