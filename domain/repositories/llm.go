package repositories

import (
	"context"

	"github.com/voicelinehq/voiceline/domain/entities"
)

// Responder abstracts the external response-generation service. Given a
// system instruction and the ordered conversation so far, it returns the
// assistant's next reply.
type Responder interface {
	Reply(ctx context.Context, systemPrompt string, history []entities.Turn) (string, error)
}
