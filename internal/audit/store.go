package audit

import (
	"context"

	pkgerrors "custodia/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
)

// Store is an append-only audit sink. Records are write-once; there is no
// update or delete.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCase(ctx context.Context, caseID string) ([]Event, error)
	ListByActor(ctx context.Context, actorID string) ([]Event, error)
}
