package domain

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the state of a code execution as reported to callers.
type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusError          Status = "ERROR"
	StatusTimeout        Status = "TIMEOUT"
	StatusRunning        Status = "RUNNING"
	StatusTransportError Status = "TRANSPORT_ERROR"
)

// IsTerminal returns true if the status represents a final state.
// RUNNING is only ever a progress value.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusTimeout, StatusTransportError:
		return true
	}
	return false
}

// Language represents a supported programming language.
type Language string

const (
	LangKotlin     Language = "kotlin"
	LangJava       Language = "java"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangCpp        Language = "cpp"
	LangC          Language = "c"
)

// DefaultLanguage is used when a filename extension is not recognized.
const DefaultLanguage = LangKotlin

// Languages lists every supported language in a stable order.
var Languages = []Language{LangKotlin, LangJava, LangPython, LangJavaScript, LangCpp, LangC}

var extensionLanguages = map[string]Language{
	".kt":   LangKotlin,
	".kts":  LangKotlin,
	".java": LangJava,
	".py":   LangPython,
	".js":   LangJavaScript,
	".mjs":  LangJavaScript,
	".cpp":  LangCpp,
	".cc":   LangCpp,
	".cxx":  LangCpp,
	".hpp":  LangCpp,
	".c":    LangC,
	".h":    LangC,
}

// IsValid checks if the language is supported.
func (l Language) IsValid() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// ParseLanguage resolves a language name, falling back to DefaultLanguage.
func ParseLanguage(name string) Language {
	l := Language(strings.ToLower(strings.TrimSpace(name)))
	if l.IsValid() {
		return l
	}
	return DefaultLanguage
}

// LanguageFromFilename selects a language variant from the filename extension.
func LanguageFromFilename(filename string) Language {
	if l, ok := extensionLanguages[strings.ToLower(filepath.Ext(filename))]; ok {
		return l
	}
	return DefaultLanguage
}

// Extensions returns the filename extensions recognized for l, sorted.
func (l Language) Extensions() []string {
	var exts []string
	for ext, lang := range extensionLanguages {
		if lang == l {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// SourceBuffer is an immutable snapshot of document text. It is passed by value.
type SourceBuffer struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// ExecutionRequest is passed to the orchestrator and its strategies.
type ExecutionRequest struct {
	ID         uuid.UUID    `json:"id"`
	DocumentID uuid.UUID    `json:"document_id"`
	Buffer     SourceBuffer `json:"buffer"`
	Language   Language     `json:"language"`
}

// NewExecutionRequest builds a request for the given document snapshot.
// The language is always resolved to a known value.
func NewExecutionRequest(documentID uuid.UUID, buf SourceBuffer) ExecutionRequest {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ExecutionRequest{
		ID:         id,
		DocumentID: documentID,
		Buffer:     buf,
		Language:   LanguageFromFilename(buf.Filename),
	}
}

// ExecutionResult is the single normalized outcome of an execution request.
type ExecutionResult struct {
	Status         Status   `json:"status"`
	CompileMessage string   `json:"compile_message"`
	RunOutput      string   `json:"run_output"`
	CompileTimeMs  uint64   `json:"compile_time_ms"`
	RunTimeMs      uint64   `json:"run_time_ms"`
	Diagnostics    []string `json:"diagnostics"`
	Strategy       string   `json:"strategy"`
}

// ProgressEvent is an intermediate update emitted while a request is in flight.
type ProgressEvent struct {
	RequestID  uuid.UUID `json:"request_id"`
	DocumentID uuid.UUID `json:"document_id"`
	Strategy   string    `json:"strategy"`
	Status     Status    `json:"status"`
	Message    string    `json:"message"`
	At         time.Time `json:"at"`
}

// ProgressFunc receives progress events. It may be nil.
type ProgressFunc func(ProgressEvent)

// Millis converts a duration to whole milliseconds, never negative.
func Millis(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d.Milliseconds())
}

// LanguageInfo describes a supported language and how this host runs it.
type LanguageInfo struct {
	Name       Language `json:"name" yaml:"name"`
	Extensions []string `json:"extensions" yaml:"extensions"`
	Compiled   bool     `json:"compiled" yaml:"compiled"`
	Compiler   string   `json:"compiler,omitempty" yaml:"compiler,omitempty"`
	Runtime    string   `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	Installed  bool     `json:"installed" yaml:"installed"`
	JudgeID    int      `json:"judge_id,omitempty" yaml:"judge_id,omitempty"`
}
