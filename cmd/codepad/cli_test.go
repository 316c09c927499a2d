package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Harsh-BH/codepad/internal/config"
	"github.com/Harsh-BH/codepad/internal/domain"
)

const helloKotlin = "fun main() {\n    val name = \"World\"\n    println(\"Hello, $name!\")\n}\n"

func init() {
	color.NoColor = true
}

// testConfig returns a config whose chain always lands on the simulation.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Toolchain.Enabled = false
	cfg.Judge.DefaultLanguage = domain.LangKotlin
	cfg.Session.HistoryCapacity = 10
	cfg.Relay.Timeout = time.Second
	return cfg
}

// runApp runs the CLI with args and returns stdout, stderr and the error.
func runApp(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newCLIApp(testConfig(), zap.NewNop())
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"codepad"}, args...))
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunCmd_Simulated(t *testing.T) {
	path := writeFile(t, "Main.kt", helloKotlin)

	out, progress, err := runApp(t, "", "run", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "SUCCESS via simulation") {
		t.Errorf("expected success line, got %q", out)
	}
	if !strings.Contains(out, "Hello, World!") {
		t.Errorf("expected program output, got %q", out)
	}
	if !strings.Contains(progress, "[simulation]") {
		t.Errorf("expected simulation progress on stderr, got %q", progress)
	}
}

func TestRunCmd_JSON(t *testing.T) {
	path := writeFile(t, "Main.kt", helloKotlin)

	out, _, err := runApp(t, "", "run", "--json", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result domain.ExecutionResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if result.Status != domain.StatusSuccess || result.RunOutput != "Hello, World!" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestRunCmd_Stdin(t *testing.T) {
	out, _, err := runApp(t, helloKotlin, "run", "--filename", "Main.kt", "-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Hello, World!") {
		t.Errorf("expected program output, got %q", out)
	}
}

func TestRunCmd_FailedExecution(t *testing.T) {
	path := writeFile(t, "Main.kt", "fun main() {\n    println(\"Hello\")\n")

	out, _, err := runApp(t, "", "run", path)
	if err == nil {
		t.Fatal("expected error for failed execution")
	}
	if !strings.Contains(err.Error(), "ERROR") {
		t.Errorf("expected status in error, got %v", err)
	}
	if !strings.Contains(out, "ERROR") {
		t.Errorf("expected ERROR line, got %q", out)
	}
}

func TestRunCmd_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing file argument", args: []string{"run"}, want: "usage"},
		{name: "missing file", args: []string{"run", filepath.Join(t.TempDir(), "nope.kt")}, want: "no such file"},
		{name: "empty source", args: []string{"run", writeFile(t, "Empty.kt", "  \n")}, want: domain.ErrEmptySource.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runApp(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLanguagesCmd(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		out, _, err := runApp(t, "", "languages")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(out, "LANGUAGE") {
			t.Errorf("expected table header, got %q", out)
		}
		for _, l := range domain.Languages {
			if !strings.Contains(out, string(l)) {
				t.Errorf("table missing %s", l)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := runApp(t, "", "languages", "--output", "json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var infos []domain.LanguageInfo
		if err := json.Unmarshal([]byte(out), &infos); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if len(infos) != len(domain.Languages) {
			t.Errorf("expected %d languages, got %d", len(domain.Languages), len(infos))
		}
	})

	t.Run("yaml", func(t *testing.T) {
		out, _, err := runApp(t, "", "languages", "-o", "yaml")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var infos []domain.LanguageInfo
		if err := yaml.Unmarshal([]byte(out), &infos); err != nil {
			t.Fatalf("invalid yaml: %v", err)
		}
		if len(infos) == 0 || infos[0].Name != domain.LangKotlin || infos[0].JudgeID == 0 {
			t.Errorf("unexpected languages %+v", infos)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, _, err := runApp(t, "", "languages", "-o", "xml"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestEditCmd_EditUndoRedoRun(t *testing.T) {
	script := strings.Join([]string{
		"append fun main() {",
		`append     println("Hi")`,
		"append }",
		"undo",
		"redo",
		"show",
		"run",
		"delete 9",
		"redo",
		"quit",
	}, "\n")

	out, _, err := runApp(t, script, "edit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Main.kt (kotlin) undo 1, redo 1",
		"Main.kt (kotlin) undo 2, redo 0",
		`   2     println("Hi")`,
		"SUCCESS via simulation",
		"Hi",
		"error: line 9 out of range",
		"error: nothing to redo",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEditCmd_OpenAndSave(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.py")
	if err := os.WriteFile(in, []byte("print(1)\nprint(2)"), 0o644); err != nil {
		t.Fatal(err)
	}
	saved := filepath.Join(dir, "saved file.kt")

	script := strings.Join([]string{
		"append hello",
		`save "` + saved + `"`,
		"open " + in,
		"undo",
		"quit",
	}, "\n")

	out, _, err := runApp(t, script, "edit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(saved)
	if err != nil || string(data) != "hello" {
		t.Errorf("expected saved document, got %q (%v)", data, err)
	}
	if !strings.Contains(out, "   2 print(2)") {
		t.Errorf("expected opened file listing:\n%s", out)
	}
	if !strings.Contains(out, "(python) undo 0, redo 0") {
		t.Errorf("expected reset history after open:\n%s", out)
	}
	if !strings.Contains(out, "error: nothing to undo") {
		t.Errorf("expected empty history after open:\n%s", out)
	}
}

func TestEditCmd_LoadsExistingFile(t *testing.T) {
	path := writeFile(t, "Main.kt", helloKotlin)

	out, _, err := runApp(t, "run\n", "edit", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Hello, World!") {
		t.Errorf("expected program output:\n%s", out)
	}
}

func TestServeRelayCmd_Validation(t *testing.T) {
	if _, _, err := runApp(t, "", "serve-relay"); err == nil || !strings.Contains(err.Error(), "broker URL") {
		t.Errorf("expected missing url error, got %v", err)
	}
	_, _, err := runApp(t, "", "serve-relay", "--transport", "kafka", "--url", "kafka://localhost")
	if err == nil || !strings.Contains(err.Error(), "unsupported relay transport") {
		t.Errorf("expected unsupported transport error, got %v", err)
	}
}

func TestLineArg(t *testing.T) {
	n, text, err := lineArg("3     indented")
	if err != nil || n != 3 || text != "    indented" {
		t.Errorf("unexpected %d %q %v", n, text, err)
	}
	for _, bad := range []string{"", "zero", "0 text", "-1"} {
		if _, _, err := lineArg(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
