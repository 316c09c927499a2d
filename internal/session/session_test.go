package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/pool"
	"github.com/Harsh-BH/codepad/internal/repository/mock"
	"github.com/Harsh-BH/codepad/internal/session"
)

func newPool(t *testing.T, exec *mock.Executor) *pool.WorkerPool {
	t.Helper()
	wp := pool.NewWorkerPool(2, 8, exec, nil, zap.NewNop())
	wp.Start(context.Background())
	t.Cleanup(wp.Stop)
	return wp
}

func newSession(t *testing.T, exec *mock.Executor, text string) *session.Session {
	t.Helper()
	s := session.New(uuid.New(), "Main.kt", text, 0, newPool(t, exec), zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func waitResult(t *testing.T, ch <-chan domain.ExecutionResult) domain.ExecutionResult {
	t.Helper()
	select {
	case r, ok := <-ch:
		if !ok {
			t.Fatal("result channel closed without a result")
		}
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return domain.ExecutionResult{}
}

func TestSession_EditUndoRedo(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &mock.Executor{}, "")

	for _, text := range []string{"a", "ab", "abc"} {
		if _, err := s.Edit(ctx, text); err != nil {
			t.Fatalf("edit %q: %v", text, err)
		}
	}

	snap, err := s.Undo(ctx)
	if err != nil || snap.Text != "ab" {
		t.Fatalf("undo: expected %q, got %q (%v)", "ab", snap.Text, err)
	}
	snap, _ = s.Undo(ctx)
	if snap.Text != "a" {
		t.Fatalf("undo: expected %q, got %q", "a", snap.Text)
	}
	snap, _ = s.Redo(ctx)
	if snap.Text != "ab" {
		t.Fatalf("redo: expected %q, got %q", "ab", snap.Text)
	}

	// The undo/redo text replacements are not recorded as edits.
	if snap.UndoCount != 1 || snap.RedoCount != 1 {
		t.Errorf("expected 1 undo and 1 redo entry, got %d and %d", snap.UndoCount, snap.RedoCount)
	}

	// A new edit clears redo.
	snap, _ = s.Edit(ctx, "abX")
	if snap.CanRedo {
		t.Error("expected redo to be cleared by a new edit")
	}
}

func TestSession_SnapshotReportsHistoryCapacity(t *testing.T) {
	ctx := context.Background()
	s := session.New(uuid.New(), "Main.kt", "", 3, newPool(t, &mock.Executor{}), zap.NewNop())
	t.Cleanup(s.Close)

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.HistoryCapacity != 3 {
		t.Errorf("expected capacity 3, got %d", snap.HistoryCapacity)
	}

	// The first edit of an empty document has no empty baseline to return to.
	snap, _ = s.Edit(ctx, "a")
	if snap.CanUndo {
		t.Error("expected no undo after the first edit of an empty document")
	}
}

func TestSession_NothingToUndoOrRedo(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &mock.Executor{}, "")

	if _, err := s.Undo(ctx); !errors.Is(err, domain.ErrNothingToUndo) {
		t.Errorf("expected ErrNothingToUndo, got %v", err)
	}
	if _, err := s.Redo(ctx); !errors.Is(err, domain.ErrNothingToRedo) {
		t.Errorf("expected ErrNothingToRedo, got %v", err)
	}
}

func TestSession_UnchangedEditIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &mock.Executor{}, "x")

	_, _ = s.Edit(ctx, "y")
	snap, _ := s.Edit(ctx, "y")
	if snap.UndoCount != 1 {
		t.Errorf("expected 1 undo entry, got %d", snap.UndoCount)
	}
}

func TestSession_OpenResetsHistory(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &mock.Executor{}, "")
	_, _ = s.Edit(ctx, "one")
	_, _ = s.Edit(ctx, "two")

	snap, err := s.Open(ctx, "hello.py", "print('hi')")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if snap.CanUndo || snap.CanRedo {
		t.Error("expected history cleared after open")
	}
	if snap.Language != domain.LangPython || snap.Text != "print('hi')" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestSession_EditTooLarge(t *testing.T) {
	s := newSession(t, &mock.Executor{}, "")
	big := strings.Repeat("a", session.MaxDocumentBytes+1)
	if _, err := s.Edit(context.Background(), big); !errors.Is(err, domain.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestSession_RunCopiesBuffer(t *testing.T) {
	ctx := context.Background()
	exec := &mock.Executor{}
	s := newSession(t, exec, "fun main() { println(\"Hello\") }")

	ch, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	result := waitResult(t, ch)
	if result.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", result.Status)
	}

	req := exec.Requests[0]
	if req.DocumentID != s.ID() || req.Language != domain.LangKotlin {
		t.Errorf("unexpected request %+v", req)
	}
	if req.Buffer.Text != "fun main() { println(\"Hello\") }" {
		t.Errorf("unexpected buffer %q", req.Buffer.Text)
	}

	// The result is recorded once the loop processes completion.
	deadline := time.Now().Add(time.Second)
	for {
		snap, _ := s.Snapshot(ctx)
		if !snap.Running && snap.LastResult != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never recorded the result")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSession_SecondRunRejected(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	exec := &mock.Executor{
		ExecuteFn: func(context.Context, *domain.ExecutionRequest, domain.ProgressFunc) (*domain.ExecutionResult, error) {
			<-release
			return &domain.ExecutionResult{Status: domain.StatusSuccess}, nil
		},
	}
	s := newSession(t, exec, "print(1)")

	ch, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := s.Run(ctx); !errors.Is(err, domain.ErrExecutionInFlight) {
		t.Errorf("expected ErrExecutionInFlight, got %v", err)
	}

	// Editing stays responsive while the run is outstanding.
	if _, err := s.Edit(ctx, "print(2)"); err != nil {
		t.Errorf("edit during run: %v", err)
	}

	close(release)
	waitResult(t, ch)
}

func TestSession_RunEmptySource(t *testing.T) {
	s := newSession(t, &mock.Executor{}, "   \n")
	if _, err := s.Run(context.Background()); !errors.Is(err, domain.ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}
}

func TestSession_ExecutionErrorBecomesErrorResult(t *testing.T) {
	exec := &mock.Executor{
		ExecuteFn: func(context.Context, *domain.ExecutionRequest, domain.ProgressFunc) (*domain.ExecutionResult, error) {
			return nil, domain.ErrExecutionInFlight
		},
	}
	s := newSession(t, exec, "print(1)")

	ch, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	result := waitResult(t, ch)
	if result.Status != domain.StatusError || result.CompileMessage == "" {
		t.Errorf("expected ERROR result with message, got %+v", result)
	}
}

func TestSession_SubscribeReceivesProgressAndResult(t *testing.T) {
	ctx := context.Background()
	exec := &mock.Executor{
		ExecuteFn: func(_ context.Context, req *domain.ExecutionRequest, progress domain.ProgressFunc) (*domain.ExecutionResult, error) {
			progress(domain.ProgressEvent{RequestID: req.ID, Strategy: "mock", Status: domain.StatusRunning, Message: "trying mock"})
			return &domain.ExecutionResult{Status: domain.StatusSuccess, RunOutput: "ok"}, nil
		},
	}
	s := newSession(t, exec, "print(1)")

	events, cancel, err := s.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if _, err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	var types []session.EventType
	timeout := time.After(2 * time.Second)
	for len(types) < 2 {
		select {
		case e := <-events:
			types = append(types, e.Type)
		case <-timeout:
			t.Fatalf("timed out, got events %v", types)
		}
	}
	if types[0] != session.EventProgress || types[1] != session.EventResult {
		t.Errorf("expected progress then result, got %v", types)
	}
}

func TestSession_ClosedRejectsCommands(t *testing.T) {
	s := session.New(uuid.New(), "Main.kt", "", 0, newPool(t, &mock.Executor{}), zap.NewNop())
	events, _, _ := s.Subscribe(context.Background())
	s.Close()

	if _, err := s.Edit(context.Background(), "x"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if _, ok := <-events; ok {
		t.Error("expected subscriber channel closed")
	}
	s.Close()
}

func TestRegistry(t *testing.T) {
	r := session.NewRegistry(newPool(t, &mock.Executor{}), 0, 2, zap.NewNop())
	defer r.CloseAll()

	a, err := r.Create("Main.kt", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Create("b.py", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := r.Create("c.py", ""); !errors.Is(err, domain.ErrTooManySessions) {
		t.Errorf("expected ErrTooManySessions, got %v", err)
	}

	got, err := r.Get(a.ID())
	if err != nil || got != a {
		t.Fatalf("get: %v", err)
	}
	if err := r.Close(a.ID()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := r.Get(a.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := r.Close(a.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on double close, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 open session, got %d", r.Len())
	}
}
