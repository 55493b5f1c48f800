package repository

import (
	"context"

	"task-service/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Repository[domain.User]
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
