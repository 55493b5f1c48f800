package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"task-service/internal/domain"
	"task-service/internal/storage"
)

// Manager uploads snapshots of completed tasks in the background.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	TaskCompleted(ctx context.Context, task domain.Task)
}

type Config struct {
	Bucket        string
	KeyPrefix     string
	MaxConcurrent int
	MaxPending    int
	UploadTimeout time.Duration
	Logger        *logrus.Logger
}

type manager struct {
	cfg     Config
	storage storage.Service

	sem     chan struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	pending int
	closed  bool
}

// Snapshot is the archived representation of a completed task.
type Snapshot struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

func NewManager(cfg Config, store storage.Service) Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 256
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &manager{
		cfg:     cfg,
		storage: store,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (m *manager) Start(ctx context.Context) error {
	if m.cfg.Bucket == "" {
		return fmt.Errorf("archive bucket is required")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg.Logger.Infof("task archiver started, bucket: %s", m.cfg.Bucket)
	return nil
}

// Shutdown stops accepting tasks and waits until every accepted snapshot has
// been uploaded or has failed.
func (m *manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.wg.Wait()
	if m.cancel != nil {
		m.cancel()
	}
	m.cfg.Logger.Info("task archiver stopped")
}

// TaskCompleted schedules an upload. It never blocks the caller; the request
// context is not used for the upload itself.
func (m *manager) TaskCompleted(_ context.Context, task domain.Task) {
	logger := m.cfg.Logger.WithField("task_id", task.ID)

	m.mu.Lock()
	if m.closed || m.ctx == nil {
		m.mu.Unlock()
		logger.Warn("archiver not running, snapshot skipped")
		return
	}
	if m.pending >= m.cfg.MaxPending {
		m.mu.Unlock()
		logger.Warn("archive queue full, snapshot dropped")
		return
	}
	m.pending++
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			m.pending--
			m.mu.Unlock()
		}()
		m.sem <- struct{}{}
		defer func() { <-m.sem }()
		m.upload(task)
	}()
}

func (m *manager) upload(task domain.Task) {
	logger := m.cfg.Logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"user_id": task.OwnerID,
	})

	body, err := json.Marshal(snapshotOf(task))
	if err != nil {
		logger.Errorf("encode snapshot: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.UploadTimeout)
	defer cancel()

	location, err := m.storage.PutObject(ctx, storage.Object{
		Bucket:      m.cfg.Bucket,
		Key:         ObjectKey(m.cfg.KeyPrefix, task),
		Body:        body,
		ContentType: "application/json",
	})
	if err != nil {
		logger.Errorf("archive upload failed: %v", err)
		return
	}
	logger.Infof("task archived to %s", location)
}

// ObjectKey returns <prefix>/<user_id>/<task_id>.json.
func ObjectKey(prefix string, task domain.Task) string {
	return path.Join(strings.Trim(prefix, "/"), task.OwnerID.String(), task.ID.String()+".json")
}

func snapshotOf(task domain.Task) Snapshot {
	return Snapshot{
		ID:          task.ID.String(),
		UserID:      task.OwnerID.String(),
		Name:        task.Name,
		Description: task.Description,
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt,
		CompletedAt: task.UpdatedAt,
	}
}
