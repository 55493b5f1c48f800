package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. PasswordHash never leaves the service layer.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
