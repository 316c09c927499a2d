// Package simulate implements the last-resort execution strategy: a static
// syntax check followed by a minimal line-oriented interpreter that produces
// illustrative output without any external toolchain.
package simulate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/orchestrator"
)

// StrategyName identifies the simulation strategy in results and metrics.
const StrategyName = "simulation"

const illustrativeNote = "simulated execution: output is illustrative and may not match a real run"

// Strategy validates and interprets source code locally. It always produces a
// definitive SUCCESS or ERROR outcome.
type Strategy struct {
	maxLoopIterations int
	logger            *zap.Logger
}

var _ orchestrator.Strategy = (*Strategy)(nil)

// NewStrategy creates the simulation strategy.
func NewStrategy(maxLoopIterations int, logger *zap.Logger) *Strategy {
	return &Strategy{
		maxLoopIterations: maxLoopIterations,
		logger:            logger,
	}
}

// Name returns the strategy name.
func (s *Strategy) Name() string { return StrategyName }

// Attempt runs the simulation. It never returns Unavailable.
func (s *Strategy) Attempt(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (orchestrator.Outcome, error) {
	start := time.Now()
	src := req.Buffer.Text

	problems := Validate(req.Language, src)
	compileElapsed := time.Since(start)
	if len(problems) > 0 {
		s.logger.Debug("Simulation syntax check failed",
			zap.String("request_id", req.ID.String()),
			zap.Strings("problems", problems),
		)
		return orchestrator.Definitive(&domain.ExecutionResult{
			Status:         domain.StatusError,
			CompileMessage: fmt.Sprintf("%s: %s", domain.ErrSimulationSyntax, strings.Join(problems, "; ")),
			CompileTimeMs:  domain.Millis(compileElapsed),
			Diagnostics:    problems,
		}), nil
	}

	if progress != nil {
		progress(domain.ProgressEvent{
			RequestID:  req.ID,
			DocumentID: req.DocumentID,
			Strategy:   StrategyName,
			Status:     domain.StatusRunning,
			Message:    "syntax check passed, simulating output",
			At:         time.Now(),
		})
	}

	runStart := time.Now()
	output, notes, err := NewInterpreter(s.maxLoopIterations).Run(ctx, req.Language, src)
	runElapsed := time.Since(runStart)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("simulation interrupted: %w", err)
	}

	diagnostics := append([]string{illustrativeNote}, notes...)
	return orchestrator.Definitive(&domain.ExecutionResult{
		Status:         domain.StatusSuccess,
		CompileMessage: "syntax check passed (simulated compilation)",
		RunOutput:      strings.TrimRight(output, "\n"),
		CompileTimeMs:  domain.Millis(compileElapsed),
		RunTimeMs:      domain.Millis(runElapsed),
		Diagnostics:    diagnostics,
	}), nil
}
