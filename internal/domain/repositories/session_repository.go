package repositories

import (
	"context"
	"time"

	"github.com/storepulse/analytics-backend/internal/domain/entities"
)

// SessionRepository is the source of truth for active browsing sessions.
// The backing store owns expiry: a session disappears on its own once its
// TTL lapses, no sweep job is involved.
type SessionRepository interface {
	// Upsert creates the session from patch.Base when unseen, otherwise
	// merges the patch atomically at field level. Either way the session's
	// TTL is refreshed and LastActiveAt converges to
	// max(existing, patch.LastActiveAt). Returns the resulting session and
	// whether it was created by this call.
	Upsert(ctx context.Context, sessionID string, patch *entities.SessionPatch) (*entities.Session, bool, error)

	// ListActive returns sessions whose LastActiveAt falls within the
	// window, most recently active first, each annotated with its derived
	// duration. Safe to call concurrently with ongoing upserts.
	ListActive(ctx context.Context, window time.Duration) ([]*entities.Session, error)
}
