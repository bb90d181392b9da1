package offline

import (
	"context"
	"time"

	"github.com/medeiros-dev/reservation-notifier/internal/domain"
)

// Store is the durable per-user log of notifications that could not be
// delivered live. Every method returns domain.ErrStoreNotConfigured when the
// store was built without a storage root.
type Store interface {
	// Save appends n to userID's log, creating it when absent.
	Save(ctx context.Context, userID string, n domain.Notification) error
	// Load returns userID's notifications oldest first. Corrupt records are skipped.
	Load(ctx context.Context, userID string) ([]domain.Notification, error)
	// Clear deletes userID's log. A missing log is not an error.
	Clear(ctx context.Context, userID string) error
	// Count returns the number of notifications Load would return for userID.
	// Corrupt records are not counted.
	Count(ctx context.Context, userID string) (int, error)
	// Drain loads and clears userID's log as one step.
	Drain(ctx context.Context, userID string) ([]domain.Notification, error)
	// SweepOlderThan deletes whole logs last written before now-horizon and
	// returns how many were deleted.
	SweepOlderThan(ctx context.Context, horizon time.Duration) (int, error)
}
