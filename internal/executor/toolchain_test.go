package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harsh-BH/codepad/internal/domain"
)

// ──────────────────────────────────────────────────────
// Unit tests: fake toolchain scripts, no real compiler needed
// ──────────────────────────────────────────────────────

const fakeKotlinc = `#!/bin/sh
if grep -q SLOW_COMPILE "$1"; then sleep 5; fi
if grep -q COMPILE_ERROR "$1"; then
  echo "Main.kt:1:1: error: unresolved reference: foo" >&2
  exit 1
fi
if grep -q NO_ARTIFACT "$1"; then exit 0; fi
cp "$1" "$4"
`

const fakeJava = `#!/bin/sh
if grep -q SLEEP "$2"; then sleep 5; fi
if grep -q CRASH "$2"; then
  echo "partial"
  echo "Exception in thread \"main\"" >&2
  exit 3
fi
if grep -q WARN "$2"; then echo "warning: deprecated" >&2; fi
echo "Hello, World!"
`

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newFakeToolchain(t *testing.T, cfg Config) (*ToolchainStrategy, string) {
	t.Helper()
	bin := t.TempDir()
	writeScript(t, bin, "kotlinc", fakeKotlinc)
	writeScript(t, bin, "java", fakeJava)
	writeScript(t, bin, "python3", "#!/bin/sh\necho \"ran $1\"\n")

	workspace := t.TempDir()
	cfg.WorkspaceDir = workspace
	cfg.SearchPaths = []string{bin}
	return NewToolchainStrategy(cfg, zap.NewNop(), WithLookPath(nil)), workspace
}

func newKotlinRequest(src string) *domain.ExecutionRequest {
	req := domain.NewExecutionRequest(uuid.New(), domain.SourceBuffer{Text: src, Filename: "Main.kt"})
	return &req
}

func TestAttempt_KotlinSuccess(t *testing.T) {
	s, workspace := newFakeToolchain(t, Config{})
	req := newKotlinRequest("fun main() { println(\"Hello, World!\") }")

	var events []domain.ProgressEvent
	outcome, err := s.Attempt(context.Background(), req, func(e domain.ProgressEvent) { events = append(events, e) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.IsDefinitive() {
		t.Fatalf("expected definitive outcome, got unavailable: %s", outcome.Reason())
	}
	result := outcome.Result()
	if result.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (%s)", result.Status, result.CompileMessage)
	}
	if result.RunOutput != "Hello, World!" {
		t.Errorf("unexpected output %q", result.RunOutput)
	}
	if len(events) != 2 {
		t.Errorf("expected compile and run progress events, got %d", len(events))
	}
	if _, err := os.Stat(filepath.Join(workspace, req.DocumentID.String())); !os.IsNotExist(err) {
		t.Error("expected per-document workspace to be removed")
	}
}

func TestAttempt_StderrBecomesDiagnostics(t *testing.T) {
	s, _ := newFakeToolchain(t, Config{})
	outcome, _ := s.Attempt(context.Background(), newKotlinRequest("fun main() {} // WARN"), nil)

	result := outcome.Result()
	if result.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", result.Status)
	}
	if len(result.Diagnostics) != 1 || result.Diagnostics[0] != "warning: deprecated" {
		t.Errorf("unexpected diagnostics %v", result.Diagnostics)
	}
	if strings.Contains(result.RunOutput, "deprecated") {
		t.Error("stderr must not be mixed into run output on success")
	}
}

func TestAttempt_CompileError(t *testing.T) {
	s, _ := newFakeToolchain(t, Config{})
	outcome, err := s.Attempt(context.Background(), newKotlinRequest("COMPILE_ERROR"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := outcome.Result()
	if result == nil || result.Status != domain.StatusError {
		t.Fatalf("expected definitive ERROR, got %+v", result)
	}
	if !strings.Contains(result.CompileMessage, "unresolved reference") {
		t.Errorf("expected compiler diagnostics, got %q", result.CompileMessage)
	}
	if result.RunTimeMs != 0 {
		t.Error("run phase must not execute after a compile error")
	}
}

func TestAttempt_MissingArtifact(t *testing.T) {
	s, _ := newFakeToolchain(t, Config{})
	outcome, _ := s.Attempt(context.Background(), newKotlinRequest("NO_ARTIFACT"), nil)

	result := outcome.Result()
	if result == nil || result.Status != domain.StatusError {
		t.Fatalf("expected ERROR for missing artifact, got %+v", result)
	}
	if !strings.Contains(result.CompileMessage, "Main.jar") {
		t.Errorf("expected artifact name in message, got %q", result.CompileMessage)
	}
}

func TestAttempt_RuntimeError(t *testing.T) {
	s, _ := newFakeToolchain(t, Config{})
	outcome, _ := s.Attempt(context.Background(), newKotlinRequest("CRASH"), nil)

	result := outcome.Result()
	if result.Status != domain.StatusError {
		t.Fatalf("expected ERROR, got %s", result.Status)
	}
	if !strings.Contains(result.RunOutput, "partial") || !strings.Contains(result.RunOutput, "Exception") {
		t.Errorf("expected stdout and stderr in output, got %q", result.RunOutput)
	}
}

func TestAttempt_RunTimeoutKillsProcess(t *testing.T) {
	s, _ := newFakeToolchain(t, Config{RunTimeout: 300 * time.Millisecond})

	start := time.Now()
	outcome, err := s.Attempt(context.Background(), newKotlinRequest("SLEEP"), nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := outcome.Result()
	if result.Status != domain.StatusTimeout {
		t.Fatalf("expected TIMEOUT, got %s", result.Status)
	}
	if elapsed > 3*time.Second {
		t.Errorf("process group was not killed promptly: %v", elapsed)
	}
	if result.RunTimeMs < 300 {
		t.Errorf("expected run time to reflect the timeout, got %dms", result.RunTimeMs)
	}
}

func TestAttempt_CompileTimeout(t *testing.T) {
	s, _ := newFakeToolchain(t, Config{CompileTimeout: 300 * time.Millisecond})

	outcome, _ := s.Attempt(context.Background(), newKotlinRequest("SLOW_COMPILE"), nil)
	result := outcome.Result()
	if result.Status != domain.StatusTimeout {
		t.Fatalf("expected TIMEOUT, got %s", result.Status)
	}
	if result.CompileTimeMs < 300 {
		t.Errorf("expected compile time to reflect the timeout, got %dms", result.CompileTimeMs)
	}
}

func TestAttempt_InterpretedWritesSourceFile(t *testing.T) {
	s, workspace := newFakeToolchain(t, Config{})
	req := domain.NewExecutionRequest(uuid.New(), domain.SourceBuffer{Text: "print(1)", Filename: "script.py"})

	outcome, _ := s.Attempt(context.Background(), &req, nil)
	result := outcome.Result()
	if result.Status != domain.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", result.Status)
	}
	want := "ran " + filepath.Join(workspace, req.DocumentID.String(), "main.py")
	if result.RunOutput != want {
		t.Errorf("expected %q, got %q", want, result.RunOutput)
	}
	if result.CompileTimeMs != 0 {
		t.Error("interpreted languages have no compile phase")
	}
}

func TestAttempt_MissingToolIsUnavailable(t *testing.T) {
	s := NewToolchainStrategy(Config{WorkspaceDir: t.TempDir()}, zap.NewNop(),
		WithLookPath(nil),
		WithProfile(Profile{
			Language:    domain.LangKotlin,
			SourceFile:  "Main.kt",
			Compiler:    "codepad-test-missing-kotlinc",
			CompileArgs: []string{argSource},
			Artifact:    "Main.jar",
			Runtime:     "codepad-test-missing-java",
		}),
	)

	outcome, err := s.Attempt(context.Background(), newKotlinRequest("fun main() {}"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.IsDefinitive() {
		t.Fatal("expected Unavailable when the compiler is missing")
	}
	if !strings.Contains(outcome.Reason(), "codepad-test-missing-kotlinc") {
		t.Errorf("expected missing binary in reason, got %q", outcome.Reason())
	}
}

func TestAttempt_NonExecutableBinaryIsUnavailable(t *testing.T) {
	bin := t.TempDir()
	// Executable bit set but not a valid program: spawn fails.
	if err := os.WriteFile(filepath.Join(bin, "node"), []byte{0x00, 0x01, 0x02}, 0o755); err != nil {
		t.Fatal(err)
	}
	s := NewToolchainStrategy(Config{WorkspaceDir: t.TempDir(), SearchPaths: []string{bin}}, zap.NewNop(), WithLookPath(nil))
	req := domain.NewExecutionRequest(uuid.New(), domain.SourceBuffer{Text: "console.log(1)", Filename: "a.js"})

	outcome, err := s.Attempt(context.Background(), &req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.IsDefinitive() {
		t.Fatalf("expected Unavailable on spawn failure, got %+v", outcome.Result())
	}
}

func TestAttempt_CancelledContext(t *testing.T) {
	s, _ := newFakeToolchain(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, _ := s.Attempt(ctx, newKotlinRequest("fun main() {}"), nil)
	if outcome.IsDefinitive() && outcome.Result().Status == domain.StatusSuccess {
		t.Error("expected non-success with cancelled context")
	}
}

func TestResolver(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "kotlinc", "#!/bin/sh\n")
	if err := os.WriteFile(filepath.Join(dir, "plain"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := resolver{searchDirs: []string{dir}}
	if p, err := r.resolve("kotlinc", nil); err != nil || p != filepath.Join(dir, "kotlinc") {
		t.Errorf("expected search dir hit, got %q, %v", p, err)
	}
	if _, err := r.resolve("plain", nil); !errors.Is(err, domain.ErrToolUnavailable) {
		t.Errorf("non-executable file must not resolve, got %v", err)
	}

	// Candidate paths are probed after search dirs.
	r = resolver{}
	if p, err := r.resolve("anything", []string{filepath.Join(dir, "kotlinc")}); err != nil || p != filepath.Join(dir, "kotlinc") {
		t.Errorf("expected candidate hit, got %q, %v", p, err)
	}

	r = resolver{lookPath: func(name string) (string, error) { return "/fake/" + name, nil }}
	if p, _ := r.resolve("node", nil); p != "/fake/node" {
		t.Errorf("expected PATH fallback, got %q", p)
	}
}

func TestExpandArgs(t *testing.T) {
	got := expandArgs([]string{argSource, "-include-runtime", "-d", argArtifact, "-cp", argDir}, "/w/Main.kt", "/w/Main.jar", "/w")
	want := []string{"/w/Main.kt", "-include-runtime", "-d", "/w/Main.jar", "-cp", "/w"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseCompileFlags(t *testing.T) {
	flags, err := ParseCompileFlags("cpp=-Wall -Wextra; c=-DNAME='a b' ;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(flags[domain.LangCpp], "|") != "-Wall|-Wextra" {
		t.Errorf("unexpected cpp flags %v", flags[domain.LangCpp])
	}
	if len(flags[domain.LangC]) != 1 || flags[domain.LangC][0] != "-DNAME=a b" {
		t.Errorf("unexpected c flags %v", flags[domain.LangC])
	}

	empty, err := ParseCompileFlags("")
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty map, got %v, %v", empty, err)
	}

	for _, bad := range []string{"ruby=-w", "cpp", "cpp=\"unterminated"} {
		if _, err := ParseCompileFlags(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestAttempt_CompileFlagsPrepended(t *testing.T) {
	bin := t.TempDir()
	// The fake compiler insists on -Wall coming first, then emits a script artifact.
	writeScript(t, bin, "g++", `#!/bin/sh
if [ "$1" != "-Wall" ]; then echo "expected -Wall first, got $1" >&2; exit 1; fi
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
printf '#!/bin/sh\necho compiled\n' > "$out"
chmod +x "$out"
`)

	var seen []string
	s := NewToolchainStrategy(Config{
		WorkspaceDir: t.TempDir(),
		SearchPaths:  []string{bin},
		CompileFlags: map[domain.Language][]string{domain.LangCpp: {"-Wall"}},
	}, zap.NewNop(), WithLookPath(nil))

	req := domain.NewExecutionRequest(uuid.New(), domain.SourceBuffer{Text: "int main() {}", Filename: "main.cpp"})
	outcome, err := s.Attempt(context.Background(), &req, func(e domain.ProgressEvent) { seen = append(seen, e.Message) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := outcome.Result(); got == nil || got.Status != domain.StatusSuccess || got.RunOutput != "compiled" {
		t.Fatalf("unexpected result %+v", got)
	}
	if len(seen) == 0 || seen[0] != "compiling with g++" {
		t.Errorf("unexpected progress %v", seen)
	}
}

func TestDefaultProfiles_CoverEveryLanguage(t *testing.T) {
	profiles := DefaultProfiles()
	for _, lang := range domain.Languages {
		p, ok := profiles[lang]
		if !ok {
			t.Errorf("missing profile for %s", lang)
			continue
		}
		if p.SourceFile == "" {
			t.Errorf("%s: empty source file", lang)
		}
		if !p.Compiled() && p.Runtime == "" {
			t.Errorf("%s: neither compiler nor runtime", lang)
		}
	}
	kt := profiles[domain.LangKotlin]
	if strings.Join(kt.CompileArgs, " ") != "{src} -include-runtime -d {artifact}" {
		t.Errorf("unexpected kotlin compile args %v", kt.CompileArgs)
	}
}

func TestLimitedBuffer(t *testing.T) {
	lb := &limitedBuffer{limit: 8}
	n, err := lb.Write([]byte("12345"))
	if n != 5 || err != nil {
		t.Fatalf("unexpected write result %d, %v", n, err)
	}
	n, err = lb.Write([]byte("67890"))
	if n != 5 || err != nil {
		t.Fatalf("overflowing write must report full length, got %d, %v", n, err)
	}
	_, _ = lb.Write([]byte("more"))

	if got := lb.String(); got != "12345678"+truncationNotice {
		t.Errorf("unexpected buffer contents %q", got)
	}
}

func TestJoinOutput(t *testing.T) {
	tests := []struct{ stdout, stderr, want string }{
		{"", "", ""},
		{"out", "", "out"},
		{"", "err", "err"},
		{"out", "err", "out\nerr"},
		{"out\n", "err", "out\nerr"},
	}
	for _, tt := range tests {
		if got := joinOutput(tt.stdout, tt.stderr); got != tt.want {
			t.Errorf("joinOutput(%q, %q) = %q, want %q", tt.stdout, tt.stderr, got, tt.want)
		}
	}
}

func TestLanguages_ReportsResolvedBinaries(t *testing.T) {
	s, _ := newFakeToolchain(t, Config{})
	infos := s.Languages()
	if len(infos) != len(domain.Languages) {
		t.Fatalf("expected %d languages, got %d", len(domain.Languages), len(infos))
	}

	byName := make(map[domain.Language]domain.LanguageInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}

	kotlin := byName[domain.LangKotlin]
	if !kotlin.Installed || !kotlin.Compiled {
		t.Errorf("expected kotlin installed and compiled, got %+v", kotlin)
	}
	if filepath.Base(kotlin.Compiler) != "kotlinc" || !filepath.IsAbs(kotlin.Compiler) {
		t.Errorf("expected resolved kotlinc path, got %q", kotlin.Compiler)
	}

	python := byName[domain.LangPython]
	if !python.Installed || python.Compiled {
		t.Errorf("expected python installed and interpreted, got %+v", python)
	}
	if len(python.Extensions) == 0 {
		t.Error("expected python extensions")
	}
}
