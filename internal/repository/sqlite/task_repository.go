package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"task-service/internal/domain"
	"task-service/internal/repository"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id),
	name TEXT NOT NULL,
	description TEXT NULL,
	status TEXT NOT NULL CHECK (status IN ('CREATED', 'WORKING', 'COMPLETED')),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);
`

const taskColumns = `id, user_id, name, description, status, created_at, updated_at`

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTasksTable); err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}
	return nil
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO tasks (id, user_id, name, description, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID.String(),
		task.OwnerID.String(),
		task.Name,
		nullString(task.Description),
		string(task.Status),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert task %s: %w", task.ID, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE id=?`,
		id.String(),
	)
	return scanTask(row)
}

func (r *TaskRepository) GetOwned(ctx context.Context, owner, id uuid.UUID) (*domain.Task, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE id=? AND user_id=?`,
		id.String(),
		owner.String(),
	)
	return scanTask(row)
}

// ListOwned returns the owner's tasks in insertion order.
func (r *TaskRepository) ListOwned(ctx context.Context, owner uuid.UUID, offset, limit int) ([]domain.Task, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE user_id=?
ORDER BY rowid ASC
LIMIT ? OFFSET ?`,
		owner.String(),
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, owner, id uuid.UUID, from, to domain.TaskStatus) (*domain.Task, error) {
	q := conn(ctx, r.db)
	row := q.QueryRowContext(ctx, `
UPDATE tasks
SET status=?, updated_at=?
WHERE id=? AND user_id=? AND status=?
RETURNING `+taskColumns,
		string(to),
		time.Now().UTC(),
		id.String(),
		owner.String(),
		string(from),
	)

	task, err := scanTask(row)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("update task status: %w", err)
	}

	// nothing matched: either the task is gone or its status moved underneath us
	if _, lookupErr := r.GetOwned(ctx, owner, id); lookupErr != nil {
		return nil, lookupErr
	}
	return nil, fmt.Errorf("update task %s: %w", id, repository.ErrStale)
}

func (r *TaskRepository) DeleteOwned(ctx context.Context, owner, id uuid.UUID) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND user_id=?`, id.String(), owner.String())
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("task delete rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("task: %w", repository.ErrNotFound)
	}
	return nil
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*domain.Task, error) {
	var (
		task        domain.Task
		description sql.NullString
		status      string
	)

	if err := scanner.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Name,
		&description,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.Status = domain.TaskStatus(status)
	if description.Valid {
		d := description.String
		task.Description = &d
	}

	return &task, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
