package preconsult

import "context"

// Store is the persistence interface for pre-consult records and derived
// screening tasks. PutTask is an insert keyed by task ID that leaves an
// existing task untouched, so accepting a record twice cannot create a
// duplicate; the returned bool reports whether this call created the task.
// UpdateStatus on an unknown ID returns ErrNotFound.
type Store interface {
	Put(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, bool, error)
	List(ctx context.Context) ([]*Record, error)
	UpdateStatus(ctx context.Context, id string, status Status, deferNote *string) error

	PutTask(ctx context.Context, t *ScreeningTask) (bool, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context) ([]*ScreeningTask, error)
}
