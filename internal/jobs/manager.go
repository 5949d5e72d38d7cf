package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/sort-forge/internal/apperr"
)

// ManagerOptions は Manager の任意設定です。
type ManagerOptions struct {
	Publisher EventPublisher
	Logger    *slog.Logger
}

// Manager はジョブの投入と状態管理、ワーカープールを担います。
type Manager struct {
	store     Store
	queue     *Queue
	validator *Validator
	runner    Runner
	publisher EventPublisher
	logger    *slog.Logger

	mu      sync.Mutex
	workers int
	wg      sync.WaitGroup
}

// NewManager は Manager を初期化します。
func NewManager(store Store, validator *Validator, runner Runner, opts ManagerOptions) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if validator == nil {
		return nil, errors.New("validator is nil")
	}
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = NopPublisher{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		queue:     NewQueue(),
		validator: validator,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Submit はジョブを queued として登録しキューに投入します。検証はワーカーで行います。
func (m *Manager) Submit(ctx context.Context, concurrency, rawURL string) (string, error) {
	job := Job{
		ID:          uuid.NewString(),
		Concurrency: concurrency,
		URL:         rawURL,
	}
	if err := m.setStatus(ctx, job.ID, Queued{}); err != nil {
		return "", fmt.Errorf("register job: %w", err)
	}
	m.queue.Put(job)
	m.logger.Debug("job queued", "job_id", job.ID, "concurrency", concurrency, "url", rawURL)
	return job.ID, nil
}

// Status はジョブ状態を返します。未知のIDには ErrNotFound を返します。
func (m *Manager) Status(ctx context.Context, jobID string) (Status, error) {
	return m.store.Get(ctx, jobID)
}

// Pending はワーカー待ちのジョブ数を返します。
func (m *Manager) Pending() int {
	return m.queue.Len()
}

// Start は workerCount 個のワーカーを起動します。
func (m *Manager) Start(workerCount int) error {
	if workerCount <= 0 {
		return fmt.Errorf("worker count must be positive (got %d)", workerCount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.workers > 0 {
		return errors.New("workers already started")
	}
	m.workers = workerCount
	m.wg.Add(workerCount)
	for i := range workerCount {
		go m.runWorker(i)
	}
	m.logger.Info("job workers started", "workers", workerCount)
	return nil
}

// Shutdown はワーカー数ぶんの停止要素を投入し、全ワーカーの終了を待ちます。
// 先に投入済みのジョブは処理されてから停止します。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	workers := m.workers
	m.workers = 0
	m.mu.Unlock()

	for range workers {
		m.queue.PutStop()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.logger.Info("job workers stopped", "workers", workers)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for workers: %w", ctx.Err())
	}
}

func (m *Manager) setStatus(ctx context.Context, jobID string, status Status) error {
	if err := m.store.Set(ctx, jobID, status); err != nil {
		return err
	}
	event := Event{JobID: jobID, Status: status, HappenedAt: time.Now().UTC()}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("failed to publish job event", "job_id", jobID, "state", status.State(), "err", err)
	}
	return nil
}

func (m *Manager) finishJob(ctx context.Context, logger *slog.Logger, jobID string, ready Ready) {
	if err := m.setStatus(ctx, jobID, ready); err != nil {
		logger.Error("failed to store job result", "err", err)
		return
	}
	logger.Info("job ready", "numbers", ready.Count, "path", ready.Path)
}

func (m *Manager) failJobWithError(ctx context.Context, logger *slog.Logger, jobID string, err error) {
	message := apperr.PublicMessage(err)
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		logger.Warn("job failed", "code", appErr.Code, "err", err)
	} else {
		logger.Error("job failed unexpectedly", "err", err)
	}
	if serr := m.setStatus(ctx, jobID, Failed{Message: message}); serr != nil {
		logger.Error("failed to store job failure", "err", serr)
	}
}
