package adapters

import (
	"context"
	"maps"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/spring-cloud/spring-cloud-contract-sub001/internal/ports"
)

// SentMessage is a message handed to the verifier by a trigger.
type SentMessage struct {
	Destination string
	Payload     []byte
	Headers     map[string]string
}

// RecordingMessageVerifierAdapter logs every triggered message and keeps
// it for inspection.
type RecordingMessageVerifierAdapter struct {
	mu       sync.Mutex
	messages []SentMessage
}

var _ ports.MessageVerifierPort = (*RecordingMessageVerifierAdapter)(nil)

func NewRecordingMessageVerifierAdapter() *RecordingMessageVerifierAdapter {
	return &RecordingMessageVerifierAdapter{}
}

func (v *RecordingMessageVerifierAdapter) Send(ctx context.Context, payload []byte, headers map[string]string, destination string) error {
	message := SentMessage{
		Destination: destination,
		Payload:     append([]byte(nil), payload...),
		Headers:     maps.Clone(headers),
	}
	v.mu.Lock()
	v.messages = append(v.messages, message)
	v.mu.Unlock()
	log.Ctx(ctx).Info().
		Str("destination", destination).
		Int("bytes", len(payload)).
		Msg("sent contract message")
	return nil
}

// Messages returns the messages sent so far, oldest first.
func (v *RecordingMessageVerifierAdapter) Messages() []SentMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]SentMessage, len(v.messages))
	copy(out, v.messages)
	return out
}
