package service

import (
	"context"
	"errors"
	"fmt"

	"task-service/internal/auth"
	"task-service/internal/domain"
	"task-service/internal/repository"
)

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
}

type userService struct {
	users  repository.UserRepository
	tx     repository.Transactor
	hasher auth.PasswordHasher
	tokens *auth.TokenService
}

func NewUserService(users repository.UserRepository, tx repository.Transactor, hasher auth.PasswordHasher, tokens *auth.TokenService) UserService {
	return &userService{
		users:  users,
		tx:     tx,
		hasher: hasher,
		tokens: tokens,
	}
}

func (s *userService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return domain.ErrUserAlreadyExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return domain.ErrUserAlreadyExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return sanitizeUser(user), nil
}

// Login checks the credentials and issues an access token for the user.
func (s *userService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", domain.ErrIncorrectEmailOrPassword
		}
		return nil, "", err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, "", domain.ErrIncorrectEmailOrPassword
	}

	token, err := s.tokens.Issue(user.ID.String())
	if err != nil {
		return nil, "", fmt.Errorf("issue access token: %w", err)
	}

	return sanitizeUser(user), token, nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
