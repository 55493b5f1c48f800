package domain

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusCreated   TaskStatus = "CREATED"
	TaskStatusWorking   TaskStatus = "WORKING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusCreated, TaskStatusWorking, TaskStatusCompleted:
		return true
	}
	return false
}

// Requestable reports whether s may be asked for through an update.
// CREATED is only reachable by creating a task.
func (s TaskStatus) Requestable() bool {
	return s == TaskStatusWorking || s == TaskStatusCompleted
}

// Terminal reports whether no transition leaves s.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted
}

// CanTransitionTo applies the lifecycle rule: WORKING may only move to
// COMPLETED, COMPLETED never moves, and CREATED may move anywhere.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusWorking:
		return next == TaskStatusCompleted
	case TaskStatusCompleted:
		return false
	default:
		return true
	}
}

// Task is a unit of work owned by exactly one user.
type Task struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Name        string
	Description *string
	Status      TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTask builds a task in its initial state.
func NewTask(owner uuid.UUID, name string, description *string) *Task {
	return &Task{
		ID:          uuid.New(),
		OwnerID:     owner,
		Name:        name,
		Description: description,
		Status:      TaskStatusCreated,
	}
}
