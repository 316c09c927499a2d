package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/executor"
	"github.com/Harsh-BH/codepad/internal/judge"
)

// Relay transports.
const (
	RelayNone = ""
	RelayNATS = "nats"
	RelayAMQP = "amqp"
)

// Config holds all configuration for the codepad server and CLI.
type Config struct {
	Server       ServerConfig
	Session      SessionConfig
	Worker       WorkerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Toolchain    ToolchainConfig
	Relay        RelayConfig
	Judge        JudgeConfig
	Orchestrator OrchestratorConfig
	Log          LogConfig
}

type ServerConfig struct {
	Port         int           `mapstructure:"API_PORT"`
	ReadTimeout  time.Duration `mapstructure:"API_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"API_WRITE_TIMEOUT"`
	RateLimit    int           `mapstructure:"API_RATE_LIMIT"`
	GinMode      string        `mapstructure:"GIN_MODE"`
	CORSOrigins  []string      `mapstructure:"API_CORS_ORIGINS"`
	JWTSecret    string        `mapstructure:"API_JWT_SECRET"`
}

type SessionConfig struct {
	HistoryCapacity int `mapstructure:"HISTORY_CAPACITY"`
	MaxDocuments    int `mapstructure:"SESSION_MAX_DOCUMENTS"`
}

type WorkerConfig struct {
	PoolSize  int `mapstructure:"WORKER_POOL_SIZE"`
	QueueSize int `mapstructure:"WORKER_QUEUE_SIZE"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"DATABASE_URL"`
}

type RedisConfig struct {
	URL     string        `mapstructure:"REDIS_URL"`
	LockTTL time.Duration `mapstructure:"REDIS_LOCK_TTL"`
}

type ToolchainConfig struct {
	Enabled        bool                         `mapstructure:"TOOLCHAIN_ENABLED"`
	WorkspaceDir   string                       `mapstructure:"TOOLCHAIN_WORKSPACE_DIR"`
	CompileTimeout time.Duration                `mapstructure:"TOOLCHAIN_COMPILE_TIMEOUT"`
	RunTimeout     time.Duration                `mapstructure:"TOOLCHAIN_RUN_TIMEOUT"`
	SearchPaths    []string                     `mapstructure:"TOOLCHAIN_SEARCH_PATHS"`
	CompileFlags   map[domain.Language][]string `mapstructure:"-"`
}

type RelayConfig struct {
	Transport string        `mapstructure:"RELAY_TRANSPORT"`
	URL       string        `mapstructure:"RELAY_URL"`
	Subject   string        `mapstructure:"RELAY_SUBJECT"`
	Timeout   time.Duration `mapstructure:"RELAY_TIMEOUT"`
}

type JudgeConfig struct {
	BaseURL         string                  `mapstructure:"JUDGE_BASE_URL"`
	APIKey          string                  `mapstructure:"JUDGE_API_KEY"`
	APIKeyHeader    string                  `mapstructure:"JUDGE_API_KEY_HEADER"`
	HTTPTimeout     time.Duration           `mapstructure:"JUDGE_HTTP_TIMEOUT"`
	PollInterval    time.Duration           `mapstructure:"JUDGE_POLL_INTERVAL"`
	MaxPolls        int                     `mapstructure:"JUDGE_MAX_POLLS"`
	CPUTimeLimit    float64                 `mapstructure:"JUDGE_CPU_TIME_LIMIT"`
	MemoryLimit     int                     `mapstructure:"JUDGE_MEMORY_LIMIT"`
	DefaultLanguage domain.Language         `mapstructure:"JUDGE_DEFAULT_LANGUAGE"`
	LanguageIDs     map[domain.Language]int `mapstructure:"-"`
}

type OrchestratorConfig struct {
	TransportFallthrough bool `mapstructure:"ORCHESTRATOR_TRANSPORT_FALLTHROUGH"`
	SimulationMaxLoops   int  `mapstructure:"SIMULATION_MAX_LOOP_ITERATIONS"`
}

type LogConfig struct {
	Level string `mapstructure:"LOG_LEVEL"`
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	return load(viper.New(), ".env")
}

func load(v *viper.Viper, envFile string) (*Config, error) {
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("API_PORT", 8080)
	v.SetDefault("API_READ_TIMEOUT", "10s")
	v.SetDefault("API_WRITE_TIMEOUT", "120s")
	v.SetDefault("API_RATE_LIMIT", 100)
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("API_CORS_ORIGINS", "*")
	v.SetDefault("API_JWT_SECRET", "")
	v.SetDefault("HISTORY_CAPACITY", 100)
	v.SetDefault("SESSION_MAX_DOCUMENTS", 1000)
	v.SetDefault("WORKER_POOL_SIZE", 4)
	v.SetDefault("WORKER_QUEUE_SIZE", 64)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_LOCK_TTL", "2m")
	v.SetDefault("TOOLCHAIN_ENABLED", true)
	v.SetDefault("TOOLCHAIN_WORKSPACE_DIR", filepath.Join(os.TempDir(), "codepad"))
	v.SetDefault("TOOLCHAIN_COMPILE_TIMEOUT", executor.DefaultCompileTimeout.String())
	v.SetDefault("TOOLCHAIN_RUN_TIMEOUT", executor.DefaultRunTimeout.String())
	v.SetDefault("TOOLCHAIN_SEARCH_PATHS", "")
	v.SetDefault("TOOLCHAIN_COMPILE_FLAGS", "")
	v.SetDefault("RELAY_TRANSPORT", RelayNone)
	v.SetDefault("RELAY_URL", "")
	v.SetDefault("RELAY_SUBJECT", "codepad.execute.request")
	v.SetDefault("RELAY_TIMEOUT", "45s")
	v.SetDefault("JUDGE_BASE_URL", "")
	v.SetDefault("JUDGE_API_KEY", "")
	v.SetDefault("JUDGE_API_KEY_HEADER", judge.DefaultAPIKeyHeader)
	v.SetDefault("JUDGE_HTTP_TIMEOUT", judge.DefaultHTTPTimeout.String())
	v.SetDefault("JUDGE_POLL_INTERVAL", judge.DefaultPollInterval.String())
	v.SetDefault("JUDGE_MAX_POLLS", judge.DefaultMaxPolls)
	v.SetDefault("JUDGE_CPU_TIME_LIMIT", judge.DefaultCPUTimeLimit)
	v.SetDefault("JUDGE_MEMORY_LIMIT", judge.DefaultMemoryLimit)
	v.SetDefault("JUDGE_DEFAULT_LANGUAGE", string(domain.DefaultLanguage))
	v.SetDefault("JUDGE_LANGUAGE_IDS", "")
	v.SetDefault("ORCHESTRATOR_TRANSPORT_FALLTHROUGH", false)
	v.SetDefault("SIMULATION_MAX_LOOP_ITERATIONS", 10)
	v.SetDefault("LOG_LEVEL", "info")

	// Attempt to read .env file (non-fatal if missing)
	_ = v.ReadInConfig()

	cfg := &Config{}
	cfg.Server.Port = v.GetInt("API_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("API_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("API_WRITE_TIMEOUT")
	cfg.Server.RateLimit = v.GetInt("API_RATE_LIMIT")
	cfg.Server.GinMode = v.GetString("GIN_MODE")
	cfg.Server.CORSOrigins = splitList(v.GetString("API_CORS_ORIGINS"), ",")
	cfg.Server.JWTSecret = v.GetString("API_JWT_SECRET")
	cfg.Session.HistoryCapacity = v.GetInt("HISTORY_CAPACITY")
	cfg.Session.MaxDocuments = v.GetInt("SESSION_MAX_DOCUMENTS")
	cfg.Worker.PoolSize = v.GetInt("WORKER_POOL_SIZE")
	cfg.Worker.QueueSize = v.GetInt("WORKER_QUEUE_SIZE")
	cfg.Database.URL = v.GetString("DATABASE_URL")
	cfg.Redis.URL = v.GetString("REDIS_URL")
	cfg.Redis.LockTTL = v.GetDuration("REDIS_LOCK_TTL")
	cfg.Toolchain.Enabled = v.GetBool("TOOLCHAIN_ENABLED")
	cfg.Toolchain.WorkspaceDir = v.GetString("TOOLCHAIN_WORKSPACE_DIR")
	cfg.Toolchain.CompileTimeout = v.GetDuration("TOOLCHAIN_COMPILE_TIMEOUT")
	cfg.Toolchain.RunTimeout = v.GetDuration("TOOLCHAIN_RUN_TIMEOUT")
	cfg.Toolchain.SearchPaths = splitList(v.GetString("TOOLCHAIN_SEARCH_PATHS"), string(os.PathListSeparator))
	cfg.Relay.Transport = strings.ToLower(strings.TrimSpace(v.GetString("RELAY_TRANSPORT")))
	cfg.Relay.URL = v.GetString("RELAY_URL")
	cfg.Relay.Subject = v.GetString("RELAY_SUBJECT")
	cfg.Relay.Timeout = v.GetDuration("RELAY_TIMEOUT")
	cfg.Judge.BaseURL = v.GetString("JUDGE_BASE_URL")
	cfg.Judge.APIKey = v.GetString("JUDGE_API_KEY")
	cfg.Judge.APIKeyHeader = v.GetString("JUDGE_API_KEY_HEADER")
	cfg.Judge.HTTPTimeout = v.GetDuration("JUDGE_HTTP_TIMEOUT")
	cfg.Judge.PollInterval = v.GetDuration("JUDGE_POLL_INTERVAL")
	cfg.Judge.MaxPolls = v.GetInt("JUDGE_MAX_POLLS")
	cfg.Judge.CPUTimeLimit = v.GetFloat64("JUDGE_CPU_TIME_LIMIT")
	cfg.Judge.MemoryLimit = v.GetInt("JUDGE_MEMORY_LIMIT")
	cfg.Judge.DefaultLanguage = domain.Language(strings.ToLower(v.GetString("JUDGE_DEFAULT_LANGUAGE")))
	cfg.Orchestrator.TransportFallthrough = v.GetBool("ORCHESTRATOR_TRANSPORT_FALLTHROUGH")
	cfg.Orchestrator.SimulationMaxLoops = v.GetInt("SIMULATION_MAX_LOOP_ITERATIONS")
	cfg.Log.Level = v.GetString("LOG_LEVEL")

	var err error
	if cfg.Toolchain.CompileFlags, err = executor.ParseCompileFlags(v.GetString("TOOLCHAIN_COMPILE_FLAGS")); err != nil {
		return nil, fmt.Errorf("config: TOOLCHAIN_COMPILE_FLAGS: %w", err)
	}
	if cfg.Judge.LanguageIDs, err = judge.ParseLanguageIDs(v.GetString("JUDGE_LANGUAGE_IDS")); err != nil {
		return nil, fmt.Errorf("config: JUDGE_LANGUAGE_IDS: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: API_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Worker.PoolSize <= 0 {
		return fmt.Errorf("config: WORKER_POOL_SIZE must be positive, got %d", c.Worker.PoolSize)
	}
	switch c.Relay.Transport {
	case RelayNone:
	case RelayNATS, RelayAMQP:
		if c.Relay.URL == "" {
			return fmt.Errorf("config: RELAY_URL is required for relay transport %q", c.Relay.Transport)
		}
	default:
		return fmt.Errorf("config: unknown RELAY_TRANSPORT %q (want nats or amqp)", c.Relay.Transport)
	}
	if !c.Judge.DefaultLanguage.IsValid() {
		return fmt.Errorf("config: unknown JUDGE_DEFAULT_LANGUAGE %q", c.Judge.DefaultLanguage)
	}
	if c.Toolchain.CompileTimeout <= 0 || c.Toolchain.RunTimeout <= 0 {
		return fmt.Errorf("config: toolchain timeouts must be positive")
	}
	return nil
}

// ExecutorConfig returns the local toolchain configuration.
func (c *Config) ExecutorConfig() executor.Config {
	return executor.Config{
		WorkspaceDir:   c.Toolchain.WorkspaceDir,
		CompileTimeout: c.Toolchain.CompileTimeout,
		RunTimeout:     c.Toolchain.RunTimeout,
		SearchPaths:    c.Toolchain.SearchPaths,
		CompileFlags:   c.Toolchain.CompileFlags,
	}
}

// JudgeStrategyConfig returns the judge polling configuration.
func (c *Config) JudgeStrategyConfig() judge.Config {
	return judge.Config{
		PollInterval: c.Judge.PollInterval,
		MaxPolls:     c.Judge.MaxPolls,
		CPUTimeLimit: c.Judge.CPUTimeLimit,
		MemoryLimit:  c.Judge.MemoryLimit,
	}
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
