package simulate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Harsh-BH/codepad/internal/domain"
)

// DefaultMaxLoopIterations caps how many iterations of a simulated loop produce output.
const DefaultMaxLoopIterations = 10

const (
	// maxSteps bounds the statements and loop iterations executed per run,
	// so nested loops cannot multiply into unbounded work.
	maxSteps = 10000

	maxOutputBytes   = 64 << 10
	truncationNotice = "\n[output truncated at 64 KiB]"
)

var (
	assignRe = regexp.MustCompile(`^(?:(?:val|var|let|const)\s+)?([A-Za-z_]\w*)(?:\s*:\s*[\w<>?]+)?\s*=\s*([^=].*?)\s*;?$`)
	printRe  = regexp.MustCompile(`^(println|print|System\.out\.println|System\.out\.print|console\.log)\s*\((.*)\)\s*;?$`)
	forRe    = regexp.MustCompile(`^for\s*\(?\s*([A-Za-z_]\w*)\s+in\s+(-?\d+|[A-Za-z_]\w*)\s*(\.\.|until)\s*(-?\d+|[A-Za-z_]\w*)\s*\)?\s*\{?\s*$`)
	braceRe  = regexp.MustCompile(`\$\{\s*([A-Za-z_]\w*)\s*\}`)
	dollarRe = regexp.MustCompile(`\$([A-Za-z_]\w*)`)
	numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// Interpreter executes a restricted, line-oriented subset of source code to
// produce illustrative output. It is not semantically faithful.
type Interpreter struct {
	maxLoopIterations int

	ctx       context.Context
	lang      domain.Language
	vars      map[string]string
	out       strings.Builder
	notes     []string
	steps     int
	truncated bool
	halted    bool
	err       error
}

// NewInterpreter creates an interpreter. maxLoopIterations <= 0 uses the default.
func NewInterpreter(maxLoopIterations int) *Interpreter {
	if maxLoopIterations <= 0 {
		maxLoopIterations = DefaultMaxLoopIterations
	}
	return &Interpreter{maxLoopIterations: maxLoopIterations}
}

// Run interprets src as lang and returns the produced output and any notes
// about statements that were truncated. Work is bounded by a step budget and
// an output cap; err is set only when ctx ends the run.
func (in *Interpreter) Run(ctx context.Context, lang domain.Language, src string) (output string, notes []string, err error) {
	in.ctx = ctx
	in.lang = lang
	in.vars = make(map[string]string)
	in.out.Reset()
	in.notes = nil
	in.steps = 0
	in.truncated = false
	in.halted = false
	in.err = nil

	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	in.block(lines)
	if in.err != nil {
		return "", nil, in.err
	}

	output = in.out.String()
	if in.truncated {
		output += truncationNotice
	}
	return output, in.notes, nil
}

// step charges one unit of work and reports whether the run may continue.
func (in *Interpreter) step() bool {
	if in.halted {
		return false
	}
	if err := in.ctx.Err(); err != nil {
		in.err = err
		in.halted = true
		return false
	}
	in.steps++
	if in.steps > maxSteps {
		in.note(fmt.Sprintf("simulation stopped after %d steps", maxSteps))
		in.halted = true
		return false
	}
	return true
}

// note records msg once; nested loops repeat the same truncation.
func (in *Interpreter) note(msg string) {
	for _, n := range in.notes {
		if n == msg {
			return
		}
	}
	in.notes = append(in.notes, msg)
}

// write appends to the output up to maxOutputBytes and halts the run once
// the cap is reached.
func (in *Interpreter) write(s string) {
	if in.halted {
		return
	}
	if room := maxOutputBytes - in.out.Len(); len(s) > room {
		in.out.WriteString(s[:room])
		in.truncated = true
		in.halted = true
		return
	}
	in.out.WriteString(s)
}

func (in *Interpreter) block(lines []string) {
	for i := 0; i < len(lines) && !in.halted; i++ {
		line := strings.TrimSpace(stripLineComment(lines[i]))
		if line == "" {
			continue
		}

		if m := forRe.FindStringSubmatch(line); m != nil {
			end := closingLine(lines, i)
			in.loop(m, lines[i+1:end])
			i = end
			continue
		}

		if !in.step() {
			return
		}
		in.statement(line)
	}
}

func (in *Interpreter) statement(line string) {
	if m := printRe.FindStringSubmatch(line); m != nil {
		text := in.eval(m[2])
		if in.newline(m[1]) {
			text += "\n"
		}
		in.write(text)
		return
	}

	if m := assignRe.FindStringSubmatch(line); m != nil {
		in.vars[m[1]] = in.eval(m[2])
	}
}

// newline reports whether fn terminates its output with a newline. A bare
// print only does so in python.
func (in *Interpreter) newline(fn string) bool {
	switch fn {
	case "System.out.print":
		return false
	case "print":
		return in.lang == domain.LangPython
	}
	return true
}

func (in *Interpreter) loop(m []string, body []string) {
	name := m[1]
	start, okStart := in.intValue(m[2])
	end, okEnd := in.intValue(m[4])
	if !okStart || !okEnd {
		in.note(fmt.Sprintf("loop over %s skipped: bounds are not numeric", name))
		return
	}
	if m[3] == "until" {
		end--
	}

	total := end - start + 1
	if total <= 0 {
		return
	}

	runs := total
	if runs > in.maxLoopIterations {
		runs = in.maxLoopIterations
	}

	saved, hadSaved := in.vars[name]
	for i := 0; i < runs && in.step(); i++ {
		in.vars[name] = strconv.Itoa(start + i)
		in.block(body)
	}
	if hadSaved {
		in.vars[name] = saved
	} else {
		delete(in.vars, name)
	}

	if total > runs && !in.halted {
		in.note(fmt.Sprintf("loop over %s truncated: showing %d of %d iterations", name, runs, total))
		in.write(fmt.Sprintf("... (%d more iterations)\n", total-runs))
	}
}

// eval evaluates a print argument or assignment right-hand side.
func (in *Interpreter) eval(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}

	parts := splitConcat(expr)
	if len(parts) > 1 {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(in.eval(p))
		}
		return b.String()
	}

	switch {
	case isQuoted(expr):
		return in.interpolate(expr[1 : len(expr)-1])
	case expr == "true" || expr == "false" || numberRe.MatchString(expr):
		return expr
	}

	if v, ok := in.vars[expr]; ok {
		return v
	}
	return expr
}

func (in *Interpreter) interpolate(s string) string {
	s = braceRe.ReplaceAllStringFunc(s, func(match string) string {
		name := braceRe.FindStringSubmatch(match)[1]
		if v, ok := in.vars[name]; ok {
			return v
		}
		return match
	})
	s = dollarRe.ReplaceAllStringFunc(s, func(match string) string {
		if v, ok := in.vars[match[1:]]; ok {
			return v
		}
		return match
	})
	return unescape(s)
}

func (in *Interpreter) intValue(token string) (int, bool) {
	if v, ok := in.vars[token]; ok {
		token = v
	}
	n, err := strconv.Atoi(token)
	return n, err == nil
}

// closingLine returns the index of the line closing the block opened at start.
// If the block never closes, the remaining lines form the body.
func closingLine(lines []string, start int) int {
	depth := 0
	opened := false
	for i := start; i < len(lines); i++ {
		clean := stripNoise(lines[i])
		if strings.Contains(clean, "{") {
			opened = true
		}
		depth += strings.Count(clean, "{") - strings.Count(clean, "}")
		if opened && depth <= 0 {
			return i
		}
	}
	return len(lines)
}

// splitConcat splits expr on top-level '+' operators outside string literals.
func splitConcat(expr string) []string {
	var parts []string
	var quote rune
	last := 0
	for i, r := range expr {
		switch {
		case quote != 0:
			if r == quote && (i == 0 || expr[i-1] != '\\') {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '+':
			parts = append(parts, expr[last:i])
			last = i + 1
		}
	}
	return append(parts, expr[last:])
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	first, last := s[0], s[len(s)-1]
	return first == last && (first == '"' || first == '\'' || first == '`')
}

func unescape(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\'`, `'`, `\\`, `\`, `\$`, `$`)
	return r.Replace(s)
}

func stripLineComment(line string) string {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}
