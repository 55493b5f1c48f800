package domain

import "errors"

// Errors surfaced to callers. Each one maps to a fixed HTTP status at the
// transport boundary.
var (
	ErrUserAlreadyExists        = errors.New("user already exists")
	ErrIncorrectEmailOrPassword = errors.New("incorrect email or password")
	ErrTokenExpired             = errors.New("token expired")
	ErrTokenAbsent              = errors.New("token absent")
	ErrIncorrectTokenFormat     = errors.New("incorrect token format")
	ErrUserNotPresent           = errors.New("user is not present")
	ErrTaskNotFound             = errors.New("task not found")
	ErrTaskUpdateNotAllowed     = errors.New("task update not allowed")
	ErrInvalidTaskStatus        = errors.New("status must be one of WORKING, COMPLETED")
)
