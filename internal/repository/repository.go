package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a unique constraint rejects an insert.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrStale is returned when a conditional update matched no row.
	ErrStale = errors.New("record changed concurrently")
)

// Repository is the persistence surface shared by every entity type.
type Repository[T any] interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, entity *T) error
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
}

// OwnedRepository restricts lookups to rows whose owner matches the caller.
// A row owned by someone else is reported as ErrNotFound.
type OwnedRepository[T any] interface {
	GetOwned(ctx context.Context, owner, id uuid.UUID) (*T, error)
	ListOwned(ctx context.Context, owner uuid.UUID, offset, limit int) ([]T, error)
	DeleteOwned(ctx context.Context, owner, id uuid.UUID) error
}

// Transactor runs fn inside a single transaction. Repositories called with the
// context passed to fn take part in that transaction; fn returning an error
// rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
