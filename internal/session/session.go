// Package session owns open documents. Each Session runs a single loop
// goroutine that is the only code touching the document text and its undo
// history; executions run on the worker pool and report back into the loop.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/history"
	"github.com/Harsh-BH/codepad/internal/pool"
)

// MaxDocumentBytes limits the size of a document's text.
const MaxDocumentBytes = 1 << 20

const subscriberBuffer = 32

// Submitter queues execution jobs.
type Submitter interface {
	Submit(job *pool.Job) error
}

// EventType distinguishes session events.
type EventType string

const (
	EventText     EventType = "text"
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
)

// Event is delivered to subscribers of a session.
type Event struct {
	Type     EventType               `json:"type"`
	Snapshot *Snapshot               `json:"snapshot,omitempty"`
	Progress *domain.ProgressEvent   `json:"progress,omitempty"`
	Result   *domain.ExecutionResult `json:"result,omitempty"`
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	DocumentID      uuid.UUID               `json:"document_id"`
	Filename        string                  `json:"filename"`
	Language        domain.Language         `json:"language"`
	Text            string                  `json:"text"`
	CanUndo         bool                    `json:"can_undo"`
	CanRedo         bool                    `json:"can_redo"`
	UndoCount       int                     `json:"undo_count"`
	RedoCount       int                     `json:"redo_count"`
	HistoryCapacity int                     `json:"history_capacity"`
	Running         bool                    `json:"running"`
	LastResult      *domain.ExecutionResult `json:"last_result,omitempty"`
}

type command struct {
	fn   func()
	done chan struct{}
}

// Session is one open document.
type Session struct {
	id     uuid.UUID
	jobs   Submitter
	logger *zap.Logger

	cmds      chan command
	closed    chan struct{}
	closeOnce sync.Once
	loopDone  chan struct{}

	// Loop-owned state.
	filename    string
	text        string
	history     *history.Manager
	running     bool
	last        *domain.ExecutionResult
	subscribers map[int]chan Event
	nextSub     int
}

// New creates a session and starts its loop.
func New(id uuid.UUID, filename, text string, historyCapacity int, jobs Submitter, logger *zap.Logger) *Session {
	s := &Session{
		id:          id,
		jobs:        jobs,
		logger:      logger.With(zap.String("document_id", id.String())),
		cmds:        make(chan command),
		closed:      make(chan struct{}),
		loopDone:    make(chan struct{}),
		filename:    filename,
		text:        text,
		history:     history.New(historyCapacity),
		subscribers: make(map[int]chan Event),
	}
	go s.loop()
	return s
}

// ID returns the document ID.
func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.closed:
			for id, ch := range s.subscribers {
				close(ch)
				delete(s.subscribers, id)
			}
			return
		case cmd := <-s.cmds:
			cmd.fn()
			if cmd.done != nil {
				close(cmd.done)
			}
		}
	}
}

// do runs fn on the loop and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case s.cmds <- cmd:
	case <-s.closed:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-cmd.done
	return nil
}

// post queues fn on the loop without waiting. It reports false once the
// session is closed.
func (s *Session) post(fn func()) bool {
	select {
	case s.cmds <- command{fn: fn}:
		return true
	case <-s.closed:
		return false
	}
}

// Edit replaces the document text as a user edit.
func (s *Session) Edit(ctx context.Context, text string) (Snapshot, error) {
	if len(text) > MaxDocumentBytes {
		return Snapshot{}, domain.ErrPayloadTooLarge
	}
	var snap Snapshot
	err := s.do(ctx, func() {
		s.setText(text)
		snap = s.snapshot()
	})
	return snap, err
}

// Undo restores the previous snapshot.
func (s *Session) Undo(ctx context.Context) (Snapshot, error) {
	return s.navigate(ctx, s.history.Undo, domain.ErrNothingToUndo)
}

// Redo re-applies the most recently undone snapshot.
func (s *Session) Redo(ctx context.Context) (Snapshot, error) {
	return s.navigate(ctx, s.history.Redo, domain.ErrNothingToRedo)
}

func (s *Session) navigate(ctx context.Context, step func(current string) (string, bool), empty error) (Snapshot, error) {
	var (
		snap   Snapshot
		stepOK bool
	)
	err := s.do(ctx, func() {
		var text string
		if text, stepOK = step(s.text); stepOK {
			s.history.Navigate(func() { s.setText(text) })
		}
		snap = s.snapshot()
	})
	if err != nil {
		return Snapshot{}, err
	}
	if !stepOK {
		return snap, empty
	}
	return snap, nil
}

// Open loads a new file into the session and clears its history.
func (s *Session) Open(ctx context.Context, filename, text string) (Snapshot, error) {
	if len(text) > MaxDocumentBytes {
		return Snapshot{}, domain.ErrPayloadTooLarge
	}
	var snap Snapshot
	err := s.do(ctx, func() {
		s.history.Reset()
		s.filename = filename
		s.text = text
		snap = s.snapshot()
		s.broadcast(Event{Type: EventText, Snapshot: &snap})
	})
	return snap, err
}

// Snapshot returns the current state of the session.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() { snap = s.snapshot() })
	return snap, err
}

// Run submits the current text for execution. The returned channel yields
// exactly one result. Only one run may be outstanding per session.
func (s *Session) Run(ctx context.Context) (<-chan domain.ExecutionResult, error) {
	var (
		out    chan domain.ExecutionResult
		runErr error
	)
	err := s.do(ctx, func() {
		if s.running {
			runErr = domain.ErrExecutionInFlight
			return
		}
		if strings.TrimSpace(s.text) == "" {
			runErr = domain.ErrEmptySource
			return
		}

		req := domain.NewExecutionRequest(s.id, domain.SourceBuffer{Text: s.text, Filename: s.filename})
		out = make(chan domain.ExecutionResult, 1)
		job := &pool.Job{
			Request: req,
			Progress: func(e domain.ProgressEvent) {
				s.post(func() { s.broadcast(Event{Type: EventProgress, Progress: &e}) })
			},
			Done: func(result *domain.ExecutionResult, err error) {
				result = resultOrError(result, err)
				if !s.post(func() { s.complete(result) }) {
					s.logger.Debug("Execution finished after session closed", zap.String("request_id", req.ID.String()))
				}
				out <- *result
				close(out)
			},
		}

		if runErr = s.jobs.Submit(job); runErr != nil {
			out = nil
			return
		}
		s.running = true
		s.logger.Info("Execution submitted",
			zap.String("request_id", req.ID.String()),
			zap.String("language", string(req.Language)),
		)
	})
	if err != nil {
		return nil, err
	}
	if runErr != nil {
		return nil, runErr
	}
	return out, nil
}

// Subscribe registers for session events. The channel is closed when the
// session closes or cancel is called. Slow subscribers miss events.
func (s *Session) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	var (
		id int
		ch = make(chan Event, subscriberBuffer)
	)
	err := s.do(ctx, func() {
		id = s.nextSub
		s.nextSub++
		s.subscribers[id] = ch
	})
	if err != nil {
		return nil, func() {}, err
	}

	cancel := func() {
		s.post(func() {
			if sub, ok := s.subscribers[id]; ok {
				close(sub)
				delete(s.subscribers, id)
			}
		})
	}
	return ch, cancel, nil
}

// Close stops the session loop. Outstanding executions still complete.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	<-s.loopDone
}

// setText is the single mutation entry for the document text. Text changes
// are checkpointed; Checkpoint itself ignores changes applied while navigating.
func (s *Session) setText(text string) {
	if text == s.text {
		return
	}
	s.history.Checkpoint(s.text)
	s.text = text
	snap := s.snapshot()
	s.broadcast(Event{Type: EventText, Snapshot: &snap})
}

func (s *Session) complete(result *domain.ExecutionResult) {
	s.running = false
	s.last = result
	s.broadcast(Event{Type: EventResult, Result: result})
}

func (s *Session) broadcast(e Event) {
	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		DocumentID:      s.id,
		Filename:        s.filename,
		Language:        domain.LanguageFromFilename(s.filename),
		Text:            s.text,
		CanUndo:         s.history.CanUndo(),
		CanRedo:         s.history.CanRedo(),
		UndoCount:       s.history.UndoCount(),
		RedoCount:       s.history.RedoCount(),
		HistoryCapacity: s.history.Capacity(),
		Running:         s.running,
		LastResult:      s.last,
	}
}

func resultOrError(result *domain.ExecutionResult, err error) *domain.ExecutionResult {
	if err == nil && result != nil {
		return result
	}
	msg := "execution failed"
	if err != nil {
		msg = err.Error()
	}
	return &domain.ExecutionResult{
		Status:         domain.StatusError,
		CompileMessage: msg,
		Diagnostics:    []string{msg},
	}
}
