package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Harsh-BH/codepad/internal/domain"
)

// ExecutionLock serializes executions per document so that at most one
// execution touches a document's workspace at a time.
type ExecutionLock interface {
	// AcquireLock attempts to take the execution lock for a document.
	// Returns true if the lock was acquired, false if an execution is already outstanding.
	AcquireLock(ctx context.Context, documentID uuid.UUID) (bool, error)

	// ReleaseLock releases the execution lock for a document.
	ReleaseLock(ctx context.Context, documentID uuid.UUID) error
}

// ResultStore records finished executions.
type ResultStore interface {
	// SetResult stores the terminal result of an execution request.
	SetResult(ctx context.Context, req *domain.ExecutionRequest, result *domain.ExecutionResult) error
}
