package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/orchestrator"
	"github.com/Harsh-BH/codepad/internal/repository"
)

// ---- ResultStore mock ----

var _ repository.ResultStore = (*ResultStore)(nil)

// ResultStore is a test double for repository.ResultStore.
type ResultStore struct {
	mu sync.Mutex

	SetResultFn func(ctx context.Context, req *domain.ExecutionRequest, result *domain.ExecutionResult) error

	// Recorded calls for assertions.
	Results []ResultUpdate
}

type ResultUpdate struct {
	RequestID uuid.UUID
	Result    *domain.ExecutionResult
}

func (m *ResultStore) SetResult(ctx context.Context, req *domain.ExecutionRequest, result *domain.ExecutionResult) error {
	m.mu.Lock()
	m.Results = append(m.Results, ResultUpdate{RequestID: req.ID, Result: result})
	m.mu.Unlock()
	if m.SetResultFn != nil {
		return m.SetResultFn(ctx, req, result)
	}
	return nil
}

// Count returns the number of recorded results.
func (m *ResultStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Results)
}

// ---- ExecutionLock mock ----

var _ repository.ExecutionLock = (*ExecutionLock)(nil)

// ExecutionLock is a test double for repository.ExecutionLock.
type ExecutionLock struct {
	mu sync.Mutex

	AcquireLockFn func(ctx context.Context, documentID uuid.UUID) (bool, error)
	ReleaseLockFn func(ctx context.Context, documentID uuid.UUID) error

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
}

func (m *ExecutionLock) AcquireLock(ctx context.Context, documentID uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, documentID)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, documentID)
	}
	return true, nil // default: lock acquired
}

func (m *ExecutionLock) ReleaseLock(ctx context.Context, documentID uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, documentID)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, documentID)
	}
	return nil
}

// Releases returns the number of ReleaseLock calls.
func (m *ExecutionLock) Releases() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ReleaseCalls)
}

// ---- Strategy mock ----

var _ orchestrator.Strategy = (*Strategy)(nil)

// Strategy is a test double for orchestrator.Strategy.
type Strategy struct {
	mu sync.Mutex

	NameValue string
	AttemptFn func(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (orchestrator.Outcome, error)

	AttemptCalls []*domain.ExecutionRequest
}

func (m *Strategy) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *Strategy) Attempt(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (orchestrator.Outcome, error) {
	m.mu.Lock()
	m.AttemptCalls = append(m.AttemptCalls, req)
	m.mu.Unlock()
	if m.AttemptFn != nil {
		return m.AttemptFn(ctx, req, progress)
	}
	return orchestrator.Definitive(&domain.ExecutionResult{
		Status:    domain.StatusSuccess,
		RunOutput: "Hello, World!",
		RunTimeMs: 42,
	}), nil
}

// Attempts returns the number of Attempt calls.
func (m *Strategy) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.AttemptCalls)
}

// Unavailable returns a Strategy that always reports itself unavailable.
func Unavailable(name, reason string) *Strategy {
	return &Strategy{
		NameValue: name,
		AttemptFn: func(context.Context, *domain.ExecutionRequest, domain.ProgressFunc) (orchestrator.Outcome, error) {
			return orchestrator.Unavailable(reason), nil
		},
	}
}

// Returning returns a Strategy that always produces result.
func Returning(name string, result domain.ExecutionResult) *Strategy {
	return &Strategy{
		NameValue: name,
		AttemptFn: func(context.Context, *domain.ExecutionRequest, domain.ProgressFunc) (orchestrator.Outcome, error) {
			r := result
			return orchestrator.Definitive(&r), nil
		},
	}
}

// ---- Executor mock ----

// Executor is a test double for anything that runs an execution request,
// such as the orchestrator as seen by the worker pool and relay responders.
type Executor struct {
	mu sync.Mutex

	ExecuteFn func(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (*domain.ExecutionResult, error)

	Requests []domain.ExecutionRequest
}

func (m *Executor) Execute(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (*domain.ExecutionResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, *req)
	m.mu.Unlock()
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, req, progress)
	}
	return &domain.ExecutionResult{
		Status:    domain.StatusSuccess,
		RunOutput: "Hello, World!",
		RunTimeMs: 42,
		Strategy:  "mock",
	}, nil
}

// Calls returns the number of Execute calls.
func (m *Executor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
