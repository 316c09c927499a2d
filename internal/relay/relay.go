// Package relay implements the remote relay strategy: the execution request
// is forwarded over a request/reply transport to a paired peer that runs it.
// Without a transport the strategy is a permanent no-op that reports Unavailable.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/orchestrator"
)

// StrategyName identifies the relay strategy in results and metrics.
const StrategyName = "relay"

const (
	DefaultSubject = "codepad.execute.request"
	DefaultTimeout = 45 * time.Second
)

// Transport sends one request and waits for its reply.
type Transport interface {
	Request(ctx context.Context, subject string, payload []byte) ([]byte, error)
	Close() error
}

// Response is the reply a paired peer sends for an execution request.
type Response struct {
	Result *domain.ExecutionResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Strategy forwards execution requests to a paired peer.
type Strategy struct {
	transport Transport
	subject   string
	timeout   time.Duration
	logger    *zap.Logger
}

var _ orchestrator.Strategy = (*Strategy)(nil)

// NewStrategy creates a relay strategy. A nil transport means not paired.
func NewStrategy(transport Transport, subject string, timeout time.Duration, logger *zap.Logger) *Strategy {
	if subject == "" {
		subject = DefaultSubject
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Strategy{
		transport: transport,
		subject:   subject,
		timeout:   timeout,
		logger:    logger,
	}
}

// Name returns the strategy name.
func (s *Strategy) Name() string { return StrategyName }

// Paired reports whether a transport is configured.
func (s *Strategy) Paired() bool { return s.transport != nil }

// Attempt forwards req to the peer. Any failure to obtain a well-formed
// terminal reply is Unavailable.
func (s *Strategy) Attempt(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (orchestrator.Outcome, error) {
	if s.transport == nil {
		return orchestrator.Unavailable("relay not paired"), nil
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return orchestrator.Unavailable(fmt.Sprintf("relay: marshal request: %v", err)), nil
	}

	if progress != nil {
		progress(domain.ProgressEvent{
			RequestID:  req.ID,
			DocumentID: req.DocumentID,
			Strategy:   StrategyName,
			Status:     domain.StatusRunning,
			Message:    "forwarded to paired runner",
			At:         time.Now(),
		})
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.transport.Request(reqCtx, s.subject, payload)
	if err != nil {
		s.logger.Warn("Relay request failed",
			zap.String("request_id", req.ID.String()),
			zap.String("subject", s.subject),
			zap.Error(err),
		)
		return orchestrator.Unavailable(fmt.Sprintf("relay: request: %v", err)), nil
	}

	var resp Response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return orchestrator.Unavailable(fmt.Sprintf("relay: malformed reply: %v", err)), nil
	}
	if resp.Error != "" {
		return orchestrator.Unavailable("relay: peer error: " + resp.Error), nil
	}
	if resp.Result == nil || !resp.Result.Status.IsTerminal() {
		return orchestrator.Unavailable("relay: reply carries no terminal result"), nil
	}

	s.logger.Debug("Relay reply received",
		zap.String("request_id", req.ID.String()),
		zap.String("status", string(resp.Result.Status)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return orchestrator.Definitive(resp.Result), nil
}

// Close closes the underlying transport.
func (s *Strategy) Close() error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Close()
}
