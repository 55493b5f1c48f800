package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"task-service/internal/auth"
	"task-service/internal/domain"
	"task-service/internal/repository"
	"task-service/internal/repository/sqlite"
)

type recordingHook struct {
	mu    sync.Mutex
	tasks []domain.Task
}

func (h *recordingHook) TaskCompleted(_ context.Context, task domain.Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append(h.tasks, task)
}

type fixture struct {
	users    UserService
	tasks    TaskService
	taskRepo repository.TaskRepository
	tokens   *auth.TokenService
	hook     *recordingHook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	userRepo := sqlite.NewUserRepository(db)
	taskRepo := sqlite.NewTaskRepository(db)
	require.NoError(t, userRepo.Init(ctx))
	require.NoError(t, taskRepo.Init(ctx))

	tokens, err := auth.NewTokenService(auth.TokenConfig{SecretKey: "test-secret"})
	require.NoError(t, err)

	tx := sqlite.NewTxManager(db)
	hook := &recordingHook{}
	return &fixture{
		users:    NewUserService(userRepo, tx, auth.NewBcryptHasher(bcrypt.MinCost), tokens),
		tasks:    NewTaskService(taskRepo, tx, hook),
		taskRepo: taskRepo,
		tokens:   tokens,
		hook:     hook,
	}
}

func (f *fixture) register(t *testing.T, email string) *domain.User {
	t.Helper()

	user, err := f.users.Register(context.Background(), email, "12345")
	require.NoError(t, err)
	return user
}

func TestUserService_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Register(ctx, "a@x.com", "12345")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Empty(t, user.PasswordHash)

	_, err = f.users.Register(ctx, "a@x.com", "67890")
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestUserService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registered := f.register(t, "a@x.com")

	user, token, err := f.users.Login(ctx, "a@x.com", "12345")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Empty(t, user.PasswordHash)

	claims, err := f.tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID.String(), claims.Subject)

	_, _, err = f.users.Login(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrIncorrectEmailOrPassword)

	_, _, err = f.users.Login(ctx, "nobody@x.com", "12345")
	assert.ErrorIs(t, err, domain.ErrIncorrectEmailOrPassword)
}

func TestTaskService_CreateStartsInCreated(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "a@x.com")

	task, err := f.tasks.CreateTask(context.Background(), owner, "T", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCreated, task.Status)
	assert.Equal(t, owner.ID, task.OwnerID)
	assert.Nil(t, task.Description)
}

func TestTaskService_Lifecycle(t *testing.T) {
	tests := []struct {
		name    string
		path    []domain.TaskStatus
		final   domain.TaskStatus
		wantErr error
	}{
		{name: "created to working", final: domain.TaskStatusWorking},
		{name: "created to completed", final: domain.TaskStatusCompleted},
		{name: "working to completed", path: []domain.TaskStatus{domain.TaskStatusWorking}, final: domain.TaskStatusCompleted},
		{name: "working to working", path: []domain.TaskStatus{domain.TaskStatusWorking}, final: domain.TaskStatusWorking, wantErr: domain.ErrTaskUpdateNotAllowed},
		{name: "working to created", path: []domain.TaskStatus{domain.TaskStatusWorking}, final: domain.TaskStatusCreated, wantErr: domain.ErrInvalidTaskStatus},
		{name: "completed to working", path: []domain.TaskStatus{domain.TaskStatusCompleted}, final: domain.TaskStatusWorking, wantErr: domain.ErrTaskUpdateNotAllowed},
		{name: "completed to completed", path: []domain.TaskStatus{domain.TaskStatusCompleted}, final: domain.TaskStatusCompleted, wantErr: domain.ErrTaskUpdateNotAllowed},
		{name: "unknown status", final: domain.TaskStatus("WRONG_STATUS"), wantErr: domain.ErrInvalidTaskStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			owner := f.register(t, "a@x.com")

			task, err := f.tasks.CreateTask(ctx, owner, "T", nil)
			require.NoError(t, err)
			for _, step := range tt.path {
				_, err := f.tasks.UpdateStatus(ctx, owner, task.ID, step)
				require.NoError(t, err)
			}
			before, err := f.tasks.GetTask(ctx, owner, task.ID)
			require.NoError(t, err)

			updated, err := f.tasks.UpdateStatus(ctx, owner, task.ID, tt.final)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				after, err := f.tasks.GetTask(ctx, owner, task.ID)
				require.NoError(t, err)
				assert.Equal(t, before.Status, after.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.final, updated.Status)
		})
	}
}

func TestTaskService_CompletionHook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "a@x.com")

	task, err := f.tasks.CreateTask(ctx, owner, "T", nil)
	require.NoError(t, err)

	_, err = f.tasks.UpdateStatus(ctx, owner, task.ID, domain.TaskStatusWorking)
	require.NoError(t, err)
	assert.Empty(t, f.hook.tasks)

	_, err = f.tasks.UpdateStatus(ctx, owner, task.ID, domain.TaskStatusCompleted)
	require.NoError(t, err)
	require.Len(t, f.hook.tasks, 1)
	assert.Equal(t, task.ID, f.hook.tasks[0].ID)

	_, err = f.tasks.UpdateStatus(ctx, owner, task.ID, domain.TaskStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrTaskUpdateNotAllowed)
	assert.Len(t, f.hook.tasks, 1)
}

func TestTaskService_OwnershipIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "a@x.com")
	bob := f.register(t, "b@x.com")

	task, err := f.tasks.CreateTask(ctx, alice, "T", nil)
	require.NoError(t, err)

	_, err = f.tasks.GetTask(ctx, bob, task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	_, err = f.tasks.UpdateStatus(ctx, bob, task.ID, domain.TaskStatusWorking)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	err = f.tasks.DeleteTask(ctx, bob, task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	list, err := f.tasks.ListTasks(ctx, bob, domain.Page{Number: 1, Size: 5})
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := f.tasks.GetTask(ctx, alice, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCreated, got.Status)
}

func TestTaskService_DeleteInAnyStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "a@x.com")

	task, err := f.tasks.CreateTask(ctx, owner, "T", nil)
	require.NoError(t, err)
	_, err = f.tasks.UpdateStatus(ctx, owner, task.ID, domain.TaskStatusCompleted)
	require.NoError(t, err)

	require.NoError(t, f.tasks.DeleteTask(ctx, owner, task.ID))

	_, err = f.tasks.GetTask(ctx, owner, task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	err = f.tasks.DeleteTask(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestTaskService_ListPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "a@x.com")

	for i := 0; i < 12; i++ {
		_, err := f.tasks.CreateTask(ctx, owner, "T", nil)
		require.NoError(t, err)
	}

	page, err := f.tasks.ListTasks(ctx, owner, domain.Page{Number: 1, Size: 5})
	require.NoError(t, err)
	assert.Len(t, page, 5)

	page, err = f.tasks.ListTasks(ctx, owner, domain.Page{Number: 2, Size: 10})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	// sizes outside [5,10] are clamped
	page, err = f.tasks.ListTasks(ctx, owner, domain.Page{Number: 1, Size: 50})
	require.NoError(t, err)
	assert.Len(t, page, 10)

	page, err = f.tasks.ListTasks(ctx, owner, domain.Page{Number: 4, Size: 5})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestGate_FetchPropagatesOtherErrors(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "a@x.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGate(f.taskRepo).Fetch(ctx, owner, uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTaskNotFound)
}
