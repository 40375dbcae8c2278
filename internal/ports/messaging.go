package ports

import "context"

// MessageVerifierPort sends contract output messages to a destination.
type MessageVerifierPort interface {
	Send(ctx context.Context, payload []byte, headers map[string]string, destination string) error
}
