// Package judge implements the hosted judge strategy: submit the source to a
// Judge0-compatible service, then poll until it reports a terminal status.
package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/metrics"
	"github.com/Harsh-BH/codepad/internal/orchestrator"
)

// StrategyName identifies the judge strategy in results and metrics.
const StrategyName = "judge"

const (
	DefaultPollInterval = time.Second
	DefaultMaxPolls     = 30
	DefaultCPUTimeLimit = 5
	DefaultMemoryLimit  = 128000
)

// Config configures the judge strategy.
type Config struct {
	PollInterval time.Duration
	MaxPolls     int
	CPUTimeLimit float64
	MemoryLimit  int
}

// Option customizes a Strategy.
type Option func(*Strategy)

// WithSleep replaces the wait between polls.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Strategy) { s.sleep = fn }
}

// Strategy runs code on the hosted judge service.
type Strategy struct {
	client    *Client
	languages *LanguageTable
	cfg       Config
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *zap.Logger
}

var _ orchestrator.Strategy = (*Strategy)(nil)

// NewStrategy creates the judge strategy. A nil client means not configured.
func NewStrategy(client *Client, languages *LanguageTable, cfg Config, logger *zap.Logger, opts ...Option) *Strategy {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if cfg.CPUTimeLimit <= 0 {
		cfg.CPUTimeLimit = DefaultCPUTimeLimit
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = DefaultMemoryLimit
	}
	s := &Strategy{
		client:    client,
		languages: languages,
		cfg:       cfg,
		sleep:     sleepContext,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the strategy name.
func (s *Strategy) Name() string { return StrategyName }

// Attempt submits req and polls for its result: one status fetch right after
// submission, then at most MaxPolls fetches, each preceded by PollInterval.
func (s *Strategy) Attempt(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (orchestrator.Outcome, error) {
	if s.client == nil || s.client.baseURL == "" {
		return orchestrator.Unavailable("judge service not configured"), nil
	}

	start := time.Now()
	token, err := s.client.Submit(ctx, Submission{
		SourceCode:   req.Buffer.Text,
		LanguageID:   s.languages.ID(req.Language),
		Wait:         false,
		CPUTimeLimit: s.cfg.CPUTimeLimit,
		MemoryLimit:  s.cfg.MemoryLimit,
	})
	if err != nil {
		return s.transportError(req, err), nil
	}

	s.logger.Debug("Submitted to judge",
		zap.String("request_id", req.ID.String()),
		zap.String("token", token),
	)
	s.notify(progress, req, "submitted, waiting for judge")

	status, err := s.client.Status(ctx, token)
	if err != nil {
		return s.transportError(req, err), nil
	}

	for polls := 0; status.Pending(); polls++ {
		if polls == s.cfg.MaxPolls {
			return orchestrator.Definitive(&domain.ExecutionResult{
				Status:      domain.StatusTimeout,
				RunTimeMs:   domain.Millis(time.Since(start)),
				Diagnostics: []string{fmt.Sprintf("%s: judge still %q after %d polls", domain.ErrExecutionTimeout, status.Status.Description, polls)},
			}), nil
		}

		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return orchestrator.Definitive(&domain.ExecutionResult{
				Status:      domain.StatusError,
				Diagnostics: []string{"execution cancelled"},
			}), nil
		}

		metrics.JudgePolls.Inc()
		if status, err = s.client.Status(ctx, token); err != nil {
			return s.transportError(req, err), nil
		}
		s.notify(progress, req, "judge status: "+status.Status.Description)
	}

	return orchestrator.Definitive(s.result(status, time.Since(start))), nil
}

func (s *Strategy) result(status *SubmissionStatus, elapsed time.Duration) *domain.ExecutionResult {
	runTime := status.Time.Millis()
	if runTime == 0 {
		runTime = domain.Millis(elapsed)
	}
	if runTime == 0 {
		runTime = 1
	}

	if status.Status.ID == StatusAccepted {
		return &domain.ExecutionResult{
			Status:    domain.StatusSuccess,
			RunOutput: strings.TrimSpace(status.Stdout),
			RunTimeMs: runTime,
		}
	}

	message := status.CompileOutput
	if strings.TrimSpace(message) == "" {
		message = status.Stderr
	}
	if strings.TrimSpace(message) == "" {
		message = status.Status.Description
	}
	return &domain.ExecutionResult{
		Status:         domain.StatusError,
		CompileMessage: strings.TrimSpace(message),
		RunOutput:      strings.TrimSpace(status.Stdout),
		RunTimeMs:      runTime,
		Diagnostics:    []string{fmt.Sprintf("judge status %d: %s", status.Status.ID, status.Status.Description)},
	}
}

func (s *Strategy) transportError(req *domain.ExecutionRequest, err error) orchestrator.Outcome {
	s.logger.Warn("Judge transport failure",
		zap.String("request_id", req.ID.String()),
		zap.Error(err),
	)
	return orchestrator.Definitive(&domain.ExecutionResult{
		Status:         domain.StatusTransportError,
		CompileMessage: err.Error(),
		Diagnostics:    []string{err.Error()},
	})
}

func (s *Strategy) notify(progress domain.ProgressFunc, req *domain.ExecutionRequest, message string) {
	if progress == nil {
		return
	}
	progress(domain.ProgressEvent{
		RequestID:  req.ID,
		DocumentID: req.DocumentID,
		Strategy:   StrategyName,
		Status:     domain.StatusRunning,
		Message:    message,
		At:         time.Now(),
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
