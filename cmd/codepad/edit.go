package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/pool"
	"github.com/Harsh-BH/codepad/internal/session"
)

const (
	defaultFilename = "Main.kt"
	editorQueueSize = 4
)

var errQuit = errors.New("quit")

// editor is an interactive line-oriented front end over one session.
type editor struct {
	pool    *pool.WorkerPool
	cancel  context.CancelFunc
	sess    *session.Session
	history int
	out     io.Writer
	logger  *zap.Logger
}

func newEditor(exec pool.Executor, historyCapacity int, out io.Writer, logger *zap.Logger) *editor {
	ctx, cancel := context.WithCancel(context.Background())
	wp := pool.NewWorkerPool(1, editorQueueSize, exec, nil, logger)
	wp.Start(ctx)
	return &editor{
		pool:    wp,
		cancel:  cancel,
		history: historyCapacity,
		out:     out,
		logger:  logger,
	}
}

// Load opens filename with text, replacing any current document.
func (e *editor) Load(ctx context.Context, filename, text string) error {
	if len(text) > session.MaxDocumentBytes {
		return domain.ErrPayloadTooLarge
	}
	if e.sess == nil {
		e.sess = session.New(uuid.New(), filename, text, e.history, e.pool, e.logger)
		return nil
	}
	_, err := e.sess.Open(ctx, filename, text)
	return err
}

// Close stops the session and waits for any running execution.
func (e *editor) Close() {
	if e.sess != nil {
		e.sess.Close()
	}
	e.pool.Stop()
	e.cancel()
}

// Run reads commands from in until quit or end of input.
func (e *editor) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), session.MaxDocumentBytes)

	e.printf("codepad editor, type help for commands\n")
	for {
		e.printf("codepad> ")
		if !scanner.Scan() {
			e.printf("\n")
			return scanner.Err()
		}
		line := strings.TrimLeft(strings.TrimRight(scanner.Text(), "\r"), " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if err := e.handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			e.printf("error: %v\n", err)
		}
	}
}

// handle runs one command line. Line text is taken verbatim so source keeps
// its quotes and indentation; file arguments are shell-split.
func (e *editor) handle(ctx context.Context, line string) error {
	cmd, text, _ := strings.Cut(line, " ")
	switch cmd {
	case "quit", "exit":
		return errQuit
	case "help":
		e.printHelp()
		return nil
	case "show":
		return e.show(ctx)
	case "append":
		return e.edit(ctx, func(lines []string) ([]string, error) {
			return append(lines, text), nil
		})
	case "insert":
		n, text, err := lineArg(text)
		if err != nil {
			return err
		}
		return e.edit(ctx, func(lines []string) ([]string, error) {
			if n > len(lines)+1 {
				return nil, fmt.Errorf("line %d out of range", n)
			}
			lines = append(lines[:n-1], append([]string{text}, lines[n-1:]...)...)
			return lines, nil
		})
	case "replace":
		n, text, err := lineArg(text)
		if err != nil {
			return err
		}
		return e.edit(ctx, func(lines []string) ([]string, error) {
			if n > len(lines) {
				return nil, fmt.Errorf("line %d out of range", n)
			}
			lines[n-1] = text
			return lines, nil
		})
	case "delete":
		n, _, err := lineArg(text)
		if err != nil {
			return err
		}
		return e.edit(ctx, func(lines []string) ([]string, error) {
			if n > len(lines) {
				return nil, fmt.Errorf("line %d out of range", n)
			}
			return append(lines[:n-1], lines[n:]...), nil
		})
	case "clear":
		return e.edit(ctx, func([]string) ([]string, error) { return nil, nil })
	case "undo":
		snap, err := e.sess.Undo(ctx)
		if err != nil {
			return err
		}
		e.printState(snap)
		return nil
	case "redo":
		snap, err := e.sess.Redo(ctx)
		if err != nil {
			return err
		}
		e.printState(snap)
		return nil
	case "open":
		args, err := shlex.Split(text)
		if err != nil {
			return err
		}
		if len(args) != 1 {
			return errors.New("usage: open <file>")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := e.Load(ctx, args[0], string(data)); err != nil {
			return err
		}
		return e.show(ctx)
	case "save":
		args, err := shlex.Split(text)
		if err != nil {
			return err
		}
		snap, err := e.sess.Snapshot(ctx)
		if err != nil {
			return err
		}
		path := snap.Filename
		if len(args) > 0 {
			path = args[0]
		}
		if err := os.WriteFile(path, []byte(snap.Text), 0o644); err != nil {
			return err
		}
		e.printf("saved %s\n", path)
		return nil
	case "run":
		return e.run(ctx)
	default:
		return fmt.Errorf("unknown command %q, type help for commands", cmd)
	}
}

// edit applies fn to the document lines as one undoable change.
func (e *editor) edit(ctx context.Context, fn func(lines []string) ([]string, error)) error {
	snap, err := e.sess.Snapshot(ctx)
	if err != nil {
		return err
	}
	lines, err := fn(splitLines(snap.Text))
	if err != nil {
		return err
	}
	snap, err = e.sess.Edit(ctx, strings.Join(lines, "\n"))
	if err != nil {
		return err
	}
	e.printState(snap)
	return nil
}

func (e *editor) run(ctx context.Context) error {
	events, unsubscribe, err := e.sess.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer unsubscribe()

	results, err := e.sess.Run(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return domain.ErrSessionClosed
			}
			switch ev.Type {
			case session.EventProgress:
				printProgress(e.out, *ev.Progress)
			case session.EventResult:
				printResult(e.out, ev.Result)
				return nil
			}
		case result := <-results:
			e.drainProgress(events)
			printResult(e.out, &result)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drainProgress prints progress events already buffered on events.
func (e *editor) drainProgress(events <-chan session.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == session.EventProgress {
				printProgress(e.out, *ev.Progress)
			}
		default:
			return
		}
	}
}

func (e *editor) show(ctx context.Context) error {
	snap, err := e.sess.Snapshot(ctx)
	if err != nil {
		return err
	}
	for i, line := range splitLines(snap.Text) {
		faintColor.Fprintf(e.out, "%4d ", i+1)
		fmt.Fprintln(e.out, line)
	}
	e.printState(snap)
	return nil
}

func (e *editor) printState(snap session.Snapshot) {
	faintColor.Fprintf(e.out, "%s (%s) undo %d, redo %d\n", snap.Filename, snap.Language, snap.UndoCount, snap.RedoCount)
}

func (e *editor) printHelp() {
	e.printf(`commands:
  show                  print the document
  append <text>         add a line at the end
  insert <n> <text>     insert a line before line n
  replace <n> <text>    replace line n
  delete <n>            delete line n
  clear                 empty the document
  undo | redo           step through edit history
  open <file>           load a file (clears history)
  save [file]           write the document to disk
  run                   execute the document
  quit                  leave the editor
`)
}

func (e *editor) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

// lineArg splits "<n> [text]" into a 1-based line number and the verbatim text.
func lineArg(s string) (int, string, error) {
	num, text, _ := strings.Cut(s, " ")
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || n < 1 {
		return 0, "", fmt.Errorf("invalid line number %q", num)
	}
	return n, text, nil
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
