package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"github.com/Harsh-BH/codepad/internal/domain"
)

// Placeholders expanded in profile argument templates.
const (
	argSource   = "{src}"
	argArtifact = "{artifact}"
	argDir      = "{dir}"
)

// Profile describes how one language is compiled and run by the local toolchain.
type Profile struct {
	Language   domain.Language
	SourceFile string

	// Compiler is empty for interpreted languages.
	Compiler           string
	CompilerCandidates []string
	CompileArgs        []string
	Artifact           string

	// Runtime is empty when the artifact itself is executed.
	Runtime           string
	RuntimeCandidates []string
	RunArgs           []string
}

// Compiled reports whether the profile has a compile phase.
func (p Profile) Compiled() bool { return p.Compiler != "" }

// DefaultProfiles returns the built-in per-language profiles.
func DefaultProfiles() map[domain.Language]Profile {
	return map[domain.Language]Profile{
		domain.LangKotlin: {
			Language:   domain.LangKotlin,
			SourceFile: "Main.kt",
			Compiler:   "kotlinc",
			CompilerCandidates: []string{
				"/usr/local/bin/kotlinc",
				"/usr/bin/kotlinc",
				"/opt/kotlinc/bin/kotlinc",
				"/data/data/com.termux/files/usr/bin/kotlinc",
			},
			CompileArgs: []string{argSource, "-include-runtime", "-d", argArtifact},
			Artifact:    "Main.jar",
			Runtime:     "java",
			RuntimeCandidates: []string{
				"/usr/local/bin/java",
				"/usr/bin/java",
				"/data/data/com.termux/files/usr/bin/java",
			},
			RunArgs: []string{"-jar", argArtifact},
		},
		domain.LangJava: {
			Language:           domain.LangJava,
			SourceFile:         "Main.java",
			Compiler:           "javac",
			CompilerCandidates: []string{"/usr/local/bin/javac", "/usr/bin/javac"},
			CompileArgs:        []string{"-d", argDir, argSource},
			Artifact:           "Main.class",
			Runtime:            "java",
			RuntimeCandidates:  []string{"/usr/local/bin/java", "/usr/bin/java"},
			RunArgs:            []string{"-cp", argDir, "Main"},
		},
		domain.LangCpp: {
			Language:           domain.LangCpp,
			SourceFile:         "main.cpp",
			Compiler:           "g++",
			CompilerCandidates: []string{"/usr/bin/g++", "/usr/local/bin/g++"},
			CompileArgs:        []string{"-std=c++17", "-O2", "-o", argArtifact, argSource},
			Artifact:           "main",
		},
		domain.LangC: {
			Language:           domain.LangC,
			SourceFile:         "main.c",
			Compiler:           "gcc",
			CompilerCandidates: []string{"/usr/bin/gcc", "/usr/local/bin/gcc"},
			CompileArgs:        []string{"-O2", "-o", argArtifact, argSource},
			Artifact:           "main",
		},
		domain.LangPython: {
			Language:          domain.LangPython,
			SourceFile:        "main.py",
			Runtime:           "python3",
			RuntimeCandidates: []string{"/usr/bin/python3", "/usr/local/bin/python3"},
			RunArgs:           []string{argSource},
		},
		domain.LangJavaScript: {
			Language:          domain.LangJavaScript,
			SourceFile:        "main.js",
			Runtime:           "node",
			RuntimeCandidates: []string{"/usr/bin/node", "/usr/local/bin/node"},
			RunArgs:           []string{argSource},
		},
	}
}

// expandArgs substitutes workspace paths into an argument template.
func expandArgs(tmpl []string, src, artifact, dir string) []string {
	r := strings.NewReplacer(argSource, src, argArtifact, artifact, argDir, dir)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out
}

// ParseCompileFlags parses "lang=flags;lang=flags" into per-language argument
// lists. Flags are split with shell quoting rules.
func ParseCompileFlags(raw string) (map[domain.Language][]string, error) {
	flags := make(map[domain.Language][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, raw, ok := strings.Cut(entry, "=")
		lang := domain.Language(strings.ToLower(strings.TrimSpace(name)))
		if !ok || !lang.IsValid() {
			return nil, fmt.Errorf("invalid compile flags entry %q", entry)
		}
		fields, err := shlex.Split(raw)
		if err != nil {
			return nil, fmt.Errorf("parse compile flags for %s: %w", lang, err)
		}
		flags[lang] = append(flags[lang], fields...)
	}
	return flags, nil
}

// resolver locates toolchain binaries. Configured search dirs win over the
// fixed candidate paths, which win over $PATH.
type resolver struct {
	searchDirs []string
	lookPath   func(string) (string, error)
}

func (r resolver) resolve(name string, candidates []string) (string, error) {
	for _, dir := range r.searchDirs {
		if p := filepath.Join(dir, name); isExecutable(p) {
			return p, nil
		}
	}
	for _, p := range candidates {
		if isExecutable(p) {
			return p, nil
		}
	}
	if r.lookPath != nil {
		if p, err := r.lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s not found: %w", name, domain.ErrToolUnavailable)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
