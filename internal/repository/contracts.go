package repository

import (
	"context"

	"github.com/maxviazov/experiment-service/internal/model"
	"github.com/maxviazov/experiment-service/internal/pagination"
)

// Pinger represents a minimal readiness probe capability.
// I use it to decouple health checks from storage implementation details.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TxFunc is the unit of work executed within a transaction boundary.
// I pass context through so nested calls can honor cancellations and deadlines.
type TxFunc func(ctx context.Context) error

// TxManager abstracts transactional execution for repositories that support it.
type TxManager interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

// ExperimentRepository declares persistence operations for experiments.
// I return domain models and surface domain errors from errors.go rather than PG codes.
type ExperimentRepository interface {
	Create(ctx context.Context, e model.Experiment) (model.Experiment, error)
	GetByExperimentID(ctx context.Context, experimentID string) (model.Experiment, error)
	// List returns one page in creation order (newest first). The page carries the
	// total match count even when the requested window is past the end.
	List(ctx context.Context, f model.ListFilter, p pagination.Request) (pagination.PageResult[model.Experiment], error)
	// UpdateStatus sets status to `to` only while the row still holds `from` and has not
	// finished; otherwise ErrConflict (or ErrNotFound when the row is gone).
	UpdateStatus(ctx context.Context, experimentID, from, to string) (model.Experiment, error)
	Delete(ctx context.Context, experimentID string) error
}
