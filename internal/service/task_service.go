package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"task-service/internal/domain"
	"task-service/internal/repository"
)

// CompletionHook is notified after a transition into COMPLETED has been committed.
type CompletionHook interface {
	TaskCompleted(ctx context.Context, task domain.Task)
}

// TaskService applies the task lifecycle on top of the owner-scoped gate.
type TaskService interface {
	CreateTask(ctx context.Context, caller *domain.User, name string, description *string) (*domain.Task, error)
	GetTask(ctx context.Context, caller *domain.User, id uuid.UUID) (*domain.Task, error)
	ListTasks(ctx context.Context, caller *domain.User, page domain.Page) ([]domain.Task, error)
	UpdateStatus(ctx context.Context, caller *domain.User, id uuid.UUID, status domain.TaskStatus) (*domain.Task, error)
	DeleteTask(ctx context.Context, caller *domain.User, id uuid.UUID) error
}

type taskService struct {
	tasks    repository.TaskRepository
	gate     *Gate
	tx       repository.Transactor
	onFinish CompletionHook
}

// NewTaskService wires the lifecycle engine. hook may be nil.
func NewTaskService(tasks repository.TaskRepository, tx repository.Transactor, hook CompletionHook) TaskService {
	return &taskService{
		tasks:    tasks,
		gate:     NewGate(tasks),
		tx:       tx,
		onFinish: hook,
	}
}

func (s *taskService) CreateTask(ctx context.Context, caller *domain.User, name string, description *string) (*domain.Task, error) {
	task := domain.NewTask(caller.ID, name, description)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.tasks.Create(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) GetTask(ctx context.Context, caller *domain.User, id uuid.UUID) (*domain.Task, error) {
	return s.gate.Fetch(ctx, caller, id)
}

func (s *taskService) ListTasks(ctx context.Context, caller *domain.User, page domain.Page) ([]domain.Task, error) {
	return s.gate.List(ctx, caller, page)
}

// UpdateStatus moves the caller's task to status if the lifecycle allows it.
// Nothing is written when the transition is rejected.
func (s *taskService) UpdateStatus(ctx context.Context, caller *domain.User, id uuid.UUID, status domain.TaskStatus) (*domain.Task, error) {
	if !status.Requestable() {
		return nil, domain.ErrInvalidTaskStatus
	}

	var updated *domain.Task
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		task, err := s.gate.Fetch(ctx, caller, id)
		if err != nil {
			return err
		}
		if !task.Status.CanTransitionTo(status) {
			return domain.ErrTaskUpdateNotAllowed
		}

		updated, err = s.tasks.UpdateStatus(ctx, caller.ID, id, task.Status, status)
		switch {
		case errors.Is(err, repository.ErrStale):
			return domain.ErrTaskUpdateNotAllowed
		case err != nil:
			return notFound(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.onFinish != nil && updated.Status == domain.TaskStatusCompleted {
		s.onFinish.TaskCompleted(ctx, *updated)
	}
	return updated, nil
}

// DeleteTask removes the caller's task regardless of its status.
func (s *taskService) DeleteTask(ctx context.Context, caller *domain.User, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.gate.Remove(ctx, caller, id)
	})
}
