// Package orchestrator walks an ordered list of execution strategies and
// returns the first definitive result, falling back to simulation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/metrics"
	"github.com/Harsh-BH/codepad/internal/repository"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTransportFallthrough makes a TRANSPORT_ERROR outcome non-terminal: the
// chain continues and the final result carries the transport diagnostics.
func WithTransportFallthrough(enabled bool) Option {
	return func(o *Orchestrator) { o.transportFallthrough = enabled }
}

// Orchestrator runs an execution request through its strategies in order.
type Orchestrator struct {
	strategies []Strategy
	fallback   Strategy
	lock       repository.ExecutionLock
	logger     *zap.Logger

	transportFallthrough bool
}

// New creates an Orchestrator. fallback runs when every strategy is
// unavailable and is never skipped.
func New(strategies []Strategy, fallback Strategy, lock repository.ExecutionLock, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		strategies: strategies,
		fallback:   fallback,
		lock:       lock,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Strategies returns the names of the configured strategies in order, fallback last.
func (o *Orchestrator) Strategies() []string {
	names := make([]string, 0, len(o.strategies)+1)
	for _, s := range o.strategies {
		names = append(names, s.Name())
	}
	return append(names, o.fallback.Name())
}

// Execute runs req to a single terminal result. It blocks until the chosen
// strategy finishes and must not be called from a session loop.
// Returns domain.ErrExecutionInFlight if the document is already executing.
func (o *Orchestrator) Execute(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (*domain.ExecutionResult, error) {
	acquired, err := o.lock.AcquireLock(ctx, req.DocumentID)
	if err != nil {
		o.logger.Error("Failed to acquire execution lock", zap.Error(err), zap.String("document_id", req.DocumentID.String()))
		return nil, fmt.Errorf("orchestrator: acquire lock: %w", err)
	}
	if !acquired {
		metrics.RejectedExecutions.Inc()
		return nil, domain.ErrExecutionInFlight
	}
	defer func() {
		if err := o.lock.ReleaseLock(context.WithoutCancel(ctx), req.DocumentID); err != nil {
			o.logger.Warn("Failed to release execution lock", zap.Error(err), zap.String("document_id", req.DocumentID.String()))
		}
	}()

	metrics.ExecutionsInFlight.Inc()
	defer metrics.ExecutionsInFlight.Dec()

	// Strategies see a private copy; the caller's buffer is never touched.
	snapshot := *req
	start := time.Now()

	result := o.run(ctx, &snapshot, progress)

	metrics.ExecutionsTotal.WithLabelValues(string(snapshot.Language), string(result.Status)).Inc()
	metrics.ExecutionDuration.WithLabelValues(string(snapshot.Language)).Observe(time.Since(start).Seconds())

	o.logger.Info("Execution finished",
		zap.String("request_id", snapshot.ID.String()),
		zap.String("document_id", snapshot.DocumentID.String()),
		zap.String("language", string(snapshot.Language)),
		zap.String("strategy", result.Strategy),
		zap.String("status", string(result.Status)),
		zap.Uint64("run_time_ms", result.RunTimeMs),
	)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) *domain.ExecutionResult {
	var transportFailure *domain.ExecutionResult

	for _, s := range o.strategies {
		emit(progress, req, s.Name(), "trying "+s.Name())

		outcome, err := o.attempt(ctx, s, req, progress)
		if err != nil {
			o.logger.Warn("Strategy failed, treating as unavailable",
				zap.String("request_id", req.ID.String()),
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			metrics.StrategyAttempts.WithLabelValues(s.Name(), "error").Inc()
			continue
		}
		if !outcome.IsDefinitive() {
			o.logger.Debug("Strategy unavailable",
				zap.String("request_id", req.ID.String()),
				zap.String("strategy", s.Name()),
				zap.String("reason", outcome.Reason()),
			)
			metrics.StrategyAttempts.WithLabelValues(s.Name(), "unavailable").Inc()
			continue
		}

		metrics.StrategyAttempts.WithLabelValues(s.Name(), "definitive").Inc()
		result := outcome.Result()
		result.Strategy = s.Name()
		if result.Status == domain.StatusTransportError && o.transportFallthrough {
			transportFailure = result
			continue
		}
		return finalize(result)
	}

	emit(progress, req, o.fallback.Name(), "trying "+o.fallback.Name())

	outcome, err := o.attempt(ctx, o.fallback, req, progress)
	var result *domain.ExecutionResult
	switch {
	case err != nil:
		metrics.StrategyAttempts.WithLabelValues(o.fallback.Name(), "error").Inc()
		o.logger.Error("Fallback strategy failed", zap.String("request_id", req.ID.String()), zap.Error(err))
		result = &domain.ExecutionResult{
			Status:         domain.StatusError,
			CompileMessage: err.Error(),
			Diagnostics:    []string{err.Error()},
		}
	case !outcome.IsDefinitive():
		metrics.StrategyAttempts.WithLabelValues(o.fallback.Name(), "unavailable").Inc()
		result = &domain.ExecutionResult{
			Status:         domain.StatusError,
			CompileMessage: "no execution strategy available: " + outcome.Reason(),
		}
	default:
		metrics.StrategyAttempts.WithLabelValues(o.fallback.Name(), "definitive").Inc()
		result = outcome.Result()
	}
	result.Strategy = o.fallback.Name()

	if transportFailure != nil {
		note := fmt.Sprintf("%s via %s: %s", domain.ErrTransportFailure, transportFailure.Strategy, transportFailure.CompileMessage)
		result.Diagnostics = append(result.Diagnostics, note)
	}
	return finalize(result)
}

// attempt calls s.Attempt, converting a panic into an error.
func (o *Orchestrator) attempt(ctx context.Context, s Strategy, req *domain.ExecutionRequest, progress domain.ProgressFunc) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.StrategyAttempts.WithLabelValues(s.Name(), "panic").Inc()
			o.logger.Error("Strategy panicked",
				zap.String("strategy", s.Name()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()

	outcome, err = s.Attempt(ctx, req, progress)
	if err != nil && errors.Is(err, domain.ErrToolUnavailable) {
		return Unavailable(err.Error()), nil
	}
	return outcome, err
}

// finalize guarantees the result is terminal.
func finalize(result *domain.ExecutionResult) *domain.ExecutionResult {
	if !result.Status.IsTerminal() {
		result.Status = domain.StatusError
		result.CompileMessage = "strategy returned a non-terminal status"
	}
	return result
}

func emit(progress domain.ProgressFunc, req *domain.ExecutionRequest, strategy, message string) {
	if progress == nil {
		return
	}
	progress(domain.ProgressEvent{
		RequestID:  req.ID,
		DocumentID: req.DocumentID,
		Strategy:   strategy,
		Status:     domain.StatusRunning,
		Message:    message,
		At:         time.Now(),
	})
}
