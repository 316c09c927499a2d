package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Harsh-BH/codepad/internal/repository"
)

var _ repository.ExecutionLock = (*ExecutionLock)(nil)

// ExecutionLock is an in-process execution lock keyed by document ID.
type ExecutionLock struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

// NewExecutionLock creates an in-memory execution lock.
func NewExecutionLock() *ExecutionLock {
	return &ExecutionLock{held: make(map[uuid.UUID]struct{})}
}

// AcquireLock takes the lock for documentID if nobody holds it.
func (l *ExecutionLock) AcquireLock(_ context.Context, documentID uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[documentID]; busy {
		return false, nil
	}
	l.held[documentID] = struct{}{}
	return true, nil
}

// ReleaseLock releases the lock for documentID.
func (l *ExecutionLock) ReleaseLock(_ context.Context, documentID uuid.UUID) error {
	l.mu.Lock()
	delete(l.held, documentID)
	l.mu.Unlock()
	return nil
}

// Held reports whether documentID is currently locked.
func (l *ExecutionLock) Held(documentID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[documentID]
	return busy
}
