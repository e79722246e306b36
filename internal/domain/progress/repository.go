package progress

import "context"

// Repository persists progress records.
type Repository interface {
	// IncrementSessions adds one completed session to the (user, skill)
	// record, creating it with defaultRequired sessions to advance when
	// absent. The increment is atomic and the post-write record is returned.
	// A missing learner or skill yields shared.ErrProgressSubjectNotFound.
	IncrementSessions(ctx context.Context, userID, skillID string, defaultRequired int) (*Progress, error)

	// GetByID returns shared.ErrProgressNotFound when absent.
	GetByID(ctx context.Context, id string) (*Progress, error)

	// Update stores stage and percentage of p.
	Update(ctx context.Context, p *Progress) error

	// ListByUser returns the user's records ordered by skill name.
	ListByUser(ctx context.Context, userID string) ([]Progress, error)

	// CountCompleted counts the user's records at CompletePercentage.
	CountCompleted(ctx context.Context, userID string) (int, error)
}
