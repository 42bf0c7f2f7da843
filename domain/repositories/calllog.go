package repositories

import (
	"context"

	"github.com/voicelinehq/voiceline/domain/entities"
)

// CallArchive persists the transcript of an ended call. Archiving is a
// non-critical side effect: it runs detached from call teardown and its
// failure is logged, never surfaced to the call path.
type CallArchive interface {
	Archive(ctx context.Context, session *entities.CallSession) error
}
