// Package history provides linear undo/redo over whole-document snapshots.
//
// A Manager keeps two bounded stacks of text snapshots. Every genuine edit
// records the text as it was before the edit:
//
//	h := history.New(100)
//	h.Checkpoint(before)      // clears redo
//
//	if prev, ok := h.Undo(current); ok {
//	    h.Navigate(func() { setText(prev) })
//	}
//
// Text-change notifications raised while the buffer is being replaced by
// Undo or Redo must not be recorded as new edits. Navigate switches the
// manager into StateNavigating for the duration of the replacement call, and
// Checkpoint is ignored in that state.
//
// A Manager is not safe for concurrent use. It is owned by a single control
// goroutine (see package session).
package history

// DefaultCapacity is the stack bound used when New receives a non-positive capacity.
const DefaultCapacity = 100

// State is the edit-session state of a Manager.
type State int

const (
	// StateEditing is normal typing; checkpoints are recorded.
	StateEditing State = iota
	// StateNavigating is set while an undo/redo replacement is applied.
	StateNavigating
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateNavigating:
		return "navigating"
	}
	return "unknown"
}

// Manager manages undo/redo state for one document.
type Manager struct {
	undoStack []string
	redoStack []string

	state    State
	capacity int
}

// New creates a history manager bounded to capacity entries per stack.
// The manager starts in StateEditing with both stacks empty. Empty snapshots
// are never stored, so undo cannot return a document to the empty state.
func New(capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{capacity: capacity}
}

// Checkpoint records text as a new undo entry and clears the redo stack.
// It is a no-op when text is empty, equal to the current top entry, or when
// called while navigating. It reports whether an entry was pushed.
func (m *Manager) Checkpoint(text string) bool {
	if m.state == StateNavigating {
		return false
	}
	if !m.pushUndo(text) {
		return false
	}
	m.redoStack = nil
	return true
}

// Undo pushes current onto the redo stack and returns the most recent undo entry.
// ok is false when there is nothing to undo.
func (m *Manager) Undo(current string) (text string, ok bool) {
	if len(m.undoStack) == 0 {
		return "", false
	}
	text = m.undoStack[len(m.undoStack)-1]
	m.undoStack = m.undoStack[:len(m.undoStack)-1]
	m.redoStack = push(m.redoStack, current, m.capacity)
	return text, true
}

// Redo pushes current onto the undo stack and returns the most recent redo entry.
// ok is false when there is nothing to redo.
func (m *Manager) Redo(current string) (text string, ok bool) {
	if len(m.redoStack) == 0 {
		return "", false
	}
	text = m.redoStack[len(m.redoStack)-1]
	m.redoStack = m.redoStack[:len(m.redoStack)-1]
	m.pushUndo(current)
	return text, true
}

// Navigate runs fn in StateNavigating. fn is the synchronous call that
// replaces the buffer text with the result of Undo or Redo.
func (m *Manager) Navigate(fn func()) {
	prev := m.state
	m.state = StateNavigating
	defer func() { m.state = prev }()
	fn()
}

// Reset removes all undo/redo history. Used when a new document is opened.
func (m *Manager) Reset() {
	m.undoStack = nil
	m.redoStack = nil
	m.state = StateEditing
}

// State returns the current edit-session state.
func (m *Manager) State() State { return m.state }

// Capacity returns the per-stack bound.
func (m *Manager) Capacity() int { return m.capacity }

// CanUndo returns true if undo is available.
func (m *Manager) CanUndo() bool { return len(m.undoStack) > 0 }

// CanRedo returns true if redo is available.
func (m *Manager) CanRedo() bool { return len(m.redoStack) > 0 }

// UndoCount returns the number of undo entries.
func (m *Manager) UndoCount() int { return len(m.undoStack) }

// RedoCount returns the number of redo entries.
func (m *Manager) RedoCount() int { return len(m.redoStack) }

func (m *Manager) pushUndo(text string) bool {
	if text == "" {
		return false
	}
	if n := len(m.undoStack); n > 0 && m.undoStack[n-1] == text {
		return false
	}
	m.undoStack = push(m.undoStack, text, m.capacity)
	return true
}

// push appends text and, on overflow, drops the oldest half of the stack.
func push(stack []string, text string, capacity int) []string {
	stack = append(stack, text)
	if len(stack) <= capacity {
		return stack
	}
	drop := capacity / 2
	if excess := len(stack) - capacity; drop < excess {
		drop = excess
	}
	kept := make([]string, len(stack)-drop)
	copy(kept, stack[drop:])
	return kept
}
