package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Harsh-BH/codepad/internal/domain"
)

func loadEnv(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	return load(viper.New(), filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadEnv(t, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Toolchain.CompileTimeout != 30*time.Second || cfg.Toolchain.RunTimeout != 10*time.Second {
		t.Errorf("unexpected toolchain timeouts %v / %v", cfg.Toolchain.CompileTimeout, cfg.Toolchain.RunTimeout)
	}
	if cfg.Judge.PollInterval != time.Second || cfg.Judge.MaxPolls != 30 {
		t.Errorf("unexpected judge polling %v x %d", cfg.Judge.PollInterval, cfg.Judge.MaxPolls)
	}
	if cfg.Judge.BaseURL != "" || cfg.Judge.APIKey != "" {
		t.Error("judge must be unconfigured by default")
	}
	if cfg.Relay.Transport != RelayNone {
		t.Errorf("relay must be unpaired by default, got %q", cfg.Relay.Transport)
	}
	if cfg.Session.HistoryCapacity != 100 {
		t.Errorf("expected history capacity 100, got %d", cfg.Session.HistoryCapacity)
	}
	if cfg.Orchestrator.TransportFallthrough {
		t.Error("transport errors must be terminal by default")
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("unexpected CORS origins %v", cfg.Server.CORSOrigins)
	}
}

func TestLoad_Environment(t *testing.T) {
	sep := string(os.PathListSeparator)
	cfg, err := loadEnv(t, map[string]string{
		"API_PORT":                           "9000",
		"JUDGE_BASE_URL":                     "https://judge.example.com",
		"JUDGE_API_KEY":                      "k",
		"JUDGE_LANGUAGE_IDS":                 "kotlin=99",
		"JUDGE_DEFAULT_LANGUAGE":             "Kotlin",
		"TOOLCHAIN_SEARCH_PATHS":             "/opt/a" + sep + " /opt/b ",
		"TOOLCHAIN_COMPILE_FLAGS":            "cpp=-Wall -Wextra",
		"RELAY_TRANSPORT":                    "NATS",
		"RELAY_URL":                          "nats://localhost:4222",
		"API_CORS_ORIGINS":                   "https://a.example, https://b.example",
		"TOOLCHAIN_RUN_TIMEOUT":              "3s",
		"ORCHESTRATOR_TRANSPORT_FALLTHROUGH": "true",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Judge.LanguageIDs[domain.LangKotlin] != 99 || cfg.Judge.DefaultLanguage != domain.LangKotlin {
		t.Errorf("unexpected judge languages %v / %s", cfg.Judge.LanguageIDs, cfg.Judge.DefaultLanguage)
	}
	if strings.Join(cfg.Toolchain.SearchPaths, ",") != "/opt/a,/opt/b" {
		t.Errorf("unexpected search paths %v", cfg.Toolchain.SearchPaths)
	}
	if strings.Join(cfg.Toolchain.CompileFlags[domain.LangCpp], " ") != "-Wall -Wextra" {
		t.Errorf("unexpected compile flags %v", cfg.Toolchain.CompileFlags)
	}
	if cfg.Relay.Transport != RelayNATS {
		t.Errorf("expected nats relay, got %q", cfg.Relay.Transport)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Errorf("expected 2 CORS origins, got %v", cfg.Server.CORSOrigins)
	}
	if cfg.ExecutorConfig().RunTimeout != 3*time.Second {
		t.Errorf("expected 3s run timeout, got %v", cfg.ExecutorConfig().RunTimeout)
	}
	if !cfg.Orchestrator.TransportFallthrough {
		t.Error("expected transport fallthrough enabled")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("API_PORT=7070\nJUDGE_MAX_POLLS=5\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := load(viper.New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 7070 || cfg.Judge.MaxPolls != 5 {
		t.Errorf("expected values from env file, got port %d polls %d", cfg.Server.Port, cfg.Judge.MaxPolls)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"API_PORT": "70000"}},
		{"zero pool", map[string]string{"WORKER_POOL_SIZE": "0"}},
		{"unknown relay", map[string]string{"RELAY_TRANSPORT": "carrier-pigeon"}},
		{"relay without url", map[string]string{"RELAY_TRANSPORT": "amqp"}},
		{"bad judge language", map[string]string{"JUDGE_DEFAULT_LANGUAGE": "cobol"}},
		{"bad language ids", map[string]string{"JUDGE_LANGUAGE_IDS": "kotlin"}},
		{"bad compile flags", map[string]string{"TOOLCHAIN_COMPILE_FLAGS": "cobol=-x"}},
		{"zero run timeout", map[string]string{"TOOLCHAIN_RUN_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadEnv(t, tt.env); err == nil {
				t.Error("expected error")
			}
		})
	}
}
