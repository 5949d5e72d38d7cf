package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound は未知のジョブIDに対して返されます。
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition は単調でない状態遷移に対して返されます。
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store はジョブ状態を保持します。
type Store interface {
	// Get は現在の状態を返します。存在しない場合は ErrNotFound です。
	Get(ctx context.Context, jobID string) (Status, error)
	// Set は状態を更新します。新規ジョブは Queued でのみ作成できます。
	Set(ctx context.Context, jobID string, status Status) error
}

// MemoryStore はプロセス内のマップでジョブ状態を保持します。
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMemoryStore は MemoryStore を作成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[string]Status)}
}

// Get はジョブ状態を取得します。
func (s *MemoryStore) Get(_ context.Context, jobID string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return status, nil
}

// Set はジョブ状態を保存します。
func (s *MemoryStore) Set(_ context.Context, jobID string, status Status) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.statuses[jobID]
	if !canTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, stateOf(current), stateOf(status))
	}
	s.statuses[jobID] = status
	return nil
}

func (s *MemoryStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.statuses)
}

func stateOf(s Status) State {
	if s == nil {
		return "none"
	}
	return s.State()
}
