package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"task-service/internal/domain"
	"task-service/internal/repository"
)

// UserLookup finds a user by id.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// SessionResolver turns the raw cookie token into the authenticated user.
type SessionResolver struct {
	tokens *TokenService
	users  UserLookup
}

func NewSessionResolver(tokens *TokenService, users UserLookup) *SessionResolver {
	return &SessionResolver{
		tokens: tokens,
		users:  users,
	}
}

// Resolve validates rawToken and loads its subject. Failures are reported as
// domain.ErrTokenAbsent, ErrIncorrectTokenFormat, ErrTokenExpired or
// ErrUserNotPresent; any other error comes from the user lookup itself.
func (r *SessionResolver) Resolve(ctx context.Context, rawToken string) (*domain.User, error) {
	if rawToken == "" {
		return nil, domain.ErrTokenAbsent
	}

	claims, err := r.tokens.Validate(rawToken)
	switch {
	case errors.Is(err, ErrExpired):
		return nil, domain.ErrTokenExpired
	case errors.Is(err, ErrMissingSubject):
		return nil, domain.ErrUserNotPresent
	case err != nil:
		return nil, domain.ErrIncorrectTokenFormat
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrUserNotPresent
	}

	user, err := r.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotPresent
		}
		return nil, fmt.Errorf("lookup session user: %w", err)
	}
	return user, nil
}
