package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-service/internal/domain"
	"task-service/internal/storage"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string]storage.Object
	err     error
	block   chan struct{}
	entered chan struct{}
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string]storage.Object{}}
}

func (s *memoryStorage) PutObject(ctx context.Context, obj storage.Object) (string, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.objects[obj.Key] = obj
	return "s3://" + obj.Bucket + "/" + obj.Key, nil
}

func (s *memoryStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func completedTask() domain.Task {
	desc := "details"
	return domain.Task{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Name:        "T",
		Description: &desc,
		Status:      domain.TaskStatusCompleted,
		CreatedAt:   time.Now().Add(-time.Hour).UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestManager_UploadsSnapshot(t *testing.T) {
	store := newMemoryStorage()
	m := NewManager(Config{Bucket: "archive", KeyPrefix: "completed-tasks/", Logger: quietLogger()}, store)
	require.NoError(t, m.Start(context.Background()))

	task := completedTask()
	m.TaskCompleted(context.Background(), task)
	m.Shutdown()

	key := ObjectKey("completed-tasks", task)
	obj, ok := store.objects[key]
	require.True(t, ok, "object %s not uploaded", key)
	assert.Equal(t, "archive", obj.Bucket)
	assert.Equal(t, "application/json", obj.ContentType)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(obj.Body, &snap))
	assert.Equal(t, task.ID.String(), snap.ID)
	assert.Equal(t, task.OwnerID.String(), snap.UserID)
	assert.Equal(t, "COMPLETED", snap.Status)
	require.NotNil(t, snap.Description)
	assert.Equal(t, "details", *snap.Description)
}

func TestObjectKey(t *testing.T) {
	task := completedTask()
	assert.Equal(t, "p/"+task.OwnerID.String()+"/"+task.ID.String()+".json", ObjectKey("/p/", task))
	assert.Equal(t, task.OwnerID.String()+"/"+task.ID.String()+".json", ObjectKey("", task))
}

func TestManager_StartRequiresBucket(t *testing.T) {
	m := NewManager(Config{Logger: quietLogger()}, newMemoryStorage())
	assert.Error(t, m.Start(context.Background()))
}

func TestManager_NotRunningSkips(t *testing.T) {
	store := newMemoryStorage()
	m := NewManager(Config{Bucket: "archive", Logger: quietLogger()}, store)

	m.TaskCompleted(context.Background(), completedTask())
	assert.Equal(t, 0, store.len())

	require.NoError(t, m.Start(context.Background()))
	m.Shutdown()
	m.TaskCompleted(context.Background(), completedTask())
	assert.Equal(t, 0, store.len())
}

func TestManager_DropsWhenQueueFull(t *testing.T) {
	store := newMemoryStorage()
	store.block = make(chan struct{})
	store.entered = make(chan struct{}, 8)
	m := NewManager(Config{Bucket: "archive", MaxConcurrent: 1, MaxPending: 2, Logger: quietLogger()}, store)
	require.NoError(t, m.Start(context.Background()))

	m.TaskCompleted(context.Background(), completedTask())
	<-store.entered
	for i := 0; i < 4; i++ {
		m.TaskCompleted(context.Background(), completedTask())
	}
	close(store.block)
	m.Shutdown()

	assert.Equal(t, 2, store.len())
}

func TestManager_UploadErrorIsSwallowed(t *testing.T) {
	store := newMemoryStorage()
	store.err = errors.New("access denied")
	m := NewManager(Config{Bucket: "archive", Logger: quietLogger()}, store)
	require.NoError(t, m.Start(context.Background()))

	m.TaskCompleted(context.Background(), completedTask())
	m.Shutdown()

	assert.Equal(t, 0, store.len())
}
