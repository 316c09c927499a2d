// Package executor implements the local toolchain strategy: it writes the
// source to a per-document workspace, compiles it and runs the artifact as
// child processes with bounded time and output.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/orchestrator"
)

// StrategyName identifies the local toolchain strategy in results and metrics.
const StrategyName = "toolchain"

const (
	DefaultCompileTimeout = 30 * time.Second
	DefaultRunTimeout     = 10 * time.Second

	// waitDelay bounds how long Wait blocks on pipes held open by orphaned grandchildren.
	waitDelay = 500 * time.Millisecond
)

// Config configures the toolchain strategy.
type Config struct {
	WorkspaceDir   string
	CompileTimeout time.Duration
	RunTimeout     time.Duration
	SearchPaths    []string

	// CompileFlags are extra compiler arguments per language, placed before
	// the profile's own arguments.
	CompileFlags map[domain.Language][]string
}

// Option customizes a ToolchainStrategy.
type Option func(*ToolchainStrategy)

// WithProfile overrides the profile used for p.Language.
func WithProfile(p Profile) Option {
	return func(s *ToolchainStrategy) { s.profiles[p.Language] = p }
}

// WithLookPath replaces the $PATH lookup, or disables it when fn is nil.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(s *ToolchainStrategy) { s.resolver.lookPath = fn }
}

// ToolchainStrategy compiles and runs code with locally installed tools.
type ToolchainStrategy struct {
	cfg      Config
	profiles map[domain.Language]Profile
	resolver resolver
	logger   *zap.Logger
}

var _ orchestrator.Strategy = (*ToolchainStrategy)(nil)

// NewToolchainStrategy creates a new local toolchain strategy.
func NewToolchainStrategy(cfg Config, logger *zap.Logger, opts ...Option) *ToolchainStrategy {
	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = filepath.Join(os.TempDir(), "codepad")
	}
	if cfg.CompileTimeout <= 0 {
		cfg.CompileTimeout = DefaultCompileTimeout
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}

	s := &ToolchainStrategy{
		cfg:      cfg,
		profiles: DefaultProfiles(),
		resolver: resolver{searchDirs: cfg.SearchPaths, lookPath: exec.LookPath},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the strategy name.
func (s *ToolchainStrategy) Name() string { return StrategyName }

// Attempt compiles and runs req. A missing compiler or runtime yields
// Unavailable; everything after a successful spawn is definitive.
func (s *ToolchainStrategy) Attempt(ctx context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (orchestrator.Outcome, error) {
	profile, ok := s.profiles[req.Language]
	if !ok {
		return orchestrator.Unavailable("no toolchain profile for " + string(req.Language)), nil
	}

	// Resolve every binary before touching the workspace.
	var compiler, runtime string
	var err error
	if profile.Compiled() {
		if compiler, err = s.resolver.resolve(profile.Compiler, profile.CompilerCandidates); err != nil {
			return orchestrator.Unavailable(err.Error()), nil
		}
	}
	if profile.Runtime != "" {
		if runtime, err = s.resolver.resolve(profile.Runtime, profile.RuntimeCandidates); err != nil {
			return orchestrator.Unavailable(err.Error()), nil
		}
	}

	workDir := filepath.Join(s.cfg.WorkspaceDir, req.DocumentID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return orchestrator.Unavailable(fmt.Sprintf("create workspace: %v", err)), nil
	}
	defer os.RemoveAll(workDir)

	srcPath := filepath.Join(workDir, profile.SourceFile)
	if err := os.WriteFile(srcPath, []byte(req.Buffer.Text), 0o644); err != nil {
		return orchestrator.Unavailable(fmt.Sprintf("write source: %v", err)), nil
	}
	artifact := filepath.Join(workDir, profile.Artifact)

	result := &domain.ExecutionResult{}

	// Phase 1: Compile
	if profile.Compiled() {
		notify(progress, req, "compiling with "+profile.Compiler)

		args := append(append([]string(nil), s.cfg.CompileFlags[req.Language]...),
			expandArgs(profile.CompileArgs, srcPath, artifact, workDir)...)
		run, err := s.spawn(ctx, s.cfg.CompileTimeout, workDir, compiler, args...)
		if err != nil {
			return orchestrator.Unavailable(err.Error()), nil
		}
		result.CompileTimeMs = domain.Millis(run.elapsed)
		result.CompileMessage = strings.TrimSpace(joinOutput(run.stdout, run.stderr))

		switch {
		case run.timedOut:
			result.Status = domain.StatusTimeout
			result.CompileMessage = fmt.Sprintf("%s: compilation exceeded %s", domain.ErrExecutionTimeout, s.cfg.CompileTimeout)
			return orchestrator.Definitive(result), nil
		case run.cancelled:
			return orchestrator.Definitive(cancelled(result)), nil
		case run.exitCode != 0:
			result.Status = domain.StatusError
			if result.CompileMessage == "" {
				result.CompileMessage = fmt.Sprintf("%s: %s exited with code %d", domain.ErrCompileFailure, profile.Compiler, run.exitCode)
			}
			result.Diagnostics = diagnosticsFrom(result.CompileMessage)
			return orchestrator.Definitive(result), nil
		}

		if _, err := os.Stat(artifact); err != nil {
			result.Status = domain.StatusError
			result.CompileMessage = fmt.Sprintf("%s: %s produced no %s", domain.ErrCompileFailure, profile.Compiler, profile.Artifact)
			return orchestrator.Definitive(result), nil
		}
	}

	// Phase 2: Execute
	notify(progress, req, "running")

	bin, args := artifact, expandArgs(profile.RunArgs, srcPath, artifact, workDir)
	if runtime != "" {
		bin = runtime
	}
	run, err := s.spawn(ctx, s.cfg.RunTimeout, workDir, bin, args...)
	if err != nil {
		return orchestrator.Unavailable(err.Error()), nil
	}
	result.RunTimeMs = domain.Millis(run.elapsed)

	s.logger.Debug("Toolchain execution completed",
		zap.String("request_id", req.ID.String()),
		zap.String("language", string(req.Language)),
		zap.Duration("elapsed", run.elapsed),
		zap.Int("exit_code", run.exitCode),
		zap.Bool("timed_out", run.timedOut),
	)

	switch {
	case run.timedOut:
		result.Status = domain.StatusTimeout
		result.RunOutput = strings.TrimRight(run.stdout, "\n")
		result.Diagnostics = []string{fmt.Sprintf("%s: process killed after %s", domain.ErrExecutionTimeout, s.cfg.RunTimeout)}
	case run.cancelled:
		cancelled(result)
	case run.exitCode != 0:
		result.Status = domain.StatusError
		result.RunOutput = strings.TrimRight(joinOutput(run.stdout, run.stderr), "\n")
		result.Diagnostics = []string{fmt.Sprintf("process exited with code %d", run.exitCode)}
	default:
		result.Status = domain.StatusSuccess
		result.RunOutput = strings.TrimRight(run.stdout, "\n")
		result.Diagnostics = diagnosticsFrom(run.stderr)
	}
	return orchestrator.Definitive(result), nil
}

type processRun struct {
	stdout, stderr string
	exitCode       int
	elapsed        time.Duration
	timedOut       bool
	cancelled      bool
}

// spawn runs one child process in its own process group. When the timeout
// fires the whole group is killed. A spawn failure is ErrToolUnavailable.
func (s *ToolchainStrategy) spawn(ctx context.Context, timeout time.Duration, dir, name string, args ...string) (*processRun, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, name, args...)
	cmd.Dir = dir

	// Set up process group for clean termination
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	stdout, stderr := newLimitedBuffer(), newLimitedBuffer()
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return &processRun{cancelled: true, exitCode: -1}, nil
		}
		return nil, fmt.Errorf("spawn %s: %v: %w", filepath.Base(name), err, domain.ErrToolUnavailable)
	}
	err := cmd.Wait()

	run := &processRun{
		stdout:  stdout.String(),
		stderr:  stderr.String(),
		elapsed: time.Since(start),
	}

	switch {
	case errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		run.timedOut = true
		run.exitCode = -1
	case ctx.Err() != nil:
		run.cancelled = true
		run.exitCode = -1
	case errors.Is(err, exec.ErrWaitDelay):
		// Exited cleanly; a background child kept the pipes open.
	case err != nil:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("wait %s: %v: %w", filepath.Base(name), err, domain.ErrToolUnavailable)
		}
		run.exitCode = exitErr.ExitCode()
	}
	return run, nil
}

func cancelled(result *domain.ExecutionResult) *domain.ExecutionResult {
	result.Status = domain.StatusError
	result.Diagnostics = append(result.Diagnostics, "execution cancelled")
	return result
}

// diagnosticsFrom splits tool output into non-empty lines.
func diagnosticsFrom(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimRight(line, "\r "); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func notify(progress domain.ProgressFunc, req *domain.ExecutionRequest, message string) {
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

// Languages reports, for every supported language, which local binaries the
// strategy would use. Installed is false when any of them is missing.
func (s *ToolchainStrategy) Languages() []domain.LanguageInfo {
	infos := make([]domain.LanguageInfo, 0, len(domain.Languages))
	for _, lang := range domain.Languages {
		info := domain.LanguageInfo{Name: lang, Extensions: lang.Extensions()}
		profile, ok := s.profiles[lang]
		if !ok {
			infos = append(infos, info)
			continue
		}

		info.Compiled = profile.Compiled()
		info.Installed = true
		if profile.Compiled() {
			path, err := s.resolver.resolve(profile.Compiler, profile.CompilerCandidates)
			info.Compiler = pathOrName(path, profile.Compiler)
			info.Installed = err == nil
		}
		if profile.Runtime != "" {
			path, err := s.resolver.resolve(profile.Runtime, profile.RuntimeCandidates)
			info.Runtime = pathOrName(path, profile.Runtime)
			info.Installed = info.Installed && err == nil
		}
		infos = append(infos, info)
	}
	return infos
}

func pathOrName(path, name string) string {
	if path != "" {
		return path
	}
	return name
}
