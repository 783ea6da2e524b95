package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Prompts   PromptsConfig   `mapstructure:"prompts"`
	Documents DocumentsConfig `mapstructure:"documents"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// JobsConfig configures job execution and persistence.
type JobsConfig struct {
	DataDir           string        `mapstructure:"data_dir"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	RetryMaxAttempts  int           `mapstructure:"retry_max_attempts"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	Retention         time.Duration `mapstructure:"retention"`
	ResumeIncomplete  bool          `mapstructure:"resume_incomplete"`
	AuditLogCapacity  int           `mapstructure:"audit_log_capacity"`
}

// EvaluatorConfig selects and configures the evaluation backend.
type EvaluatorConfig struct {
	Provider string        `mapstructure:"provider"` // "openai" or "mock"
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MockFile string        `mapstructure:"mock_file"`
}

// RulesConfig locates guideline rule sets.
type RulesConfig struct {
	Dir string `mapstructure:"dir"`
}

// PromptsConfig locates prompt templates.
type PromptsConfig struct {
	File string `mapstructure:"file"`
}

// DocumentsConfig configures upload staging.
type DocumentsConfig struct {
	StagingDir string `mapstructure:"staging_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  64 << 20,
		},
		Jobs: JobsConfig{
			DataDir:           "data/jobs",
			MaxConcurrent:     3,
			HeartbeatInterval: 30 * time.Second,
			RetryMaxAttempts:  3,
			RetryBaseDelay:    30 * time.Second,
			Retention:         time.Hour,
			ResumeIncomplete:  true,
			AuditLogCapacity:  1000,
		},
		Evaluator: EvaluatorConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o",
			Timeout:  20 * time.Minute,
		},
		Rules: RulesConfig{
			Dir: "data/rulesets",
		},
		Prompts: PromptsConfig{
			File: "",
		},
		Documents: DocumentsConfig{
			StagingDir: "data/staging",
		},
	}
}

// Load reads configuration from an optional YAML file plus GUARDRAIL_*
// environment overrides, layered over Default(). An empty path means
// environment and defaults only; a missing explicit file is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GUARDRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)
	v.SetDefault("server.max_upload_bytes", def.Server.MaxUploadBytes)
	v.SetDefault("jobs.data_dir", def.Jobs.DataDir)
	v.SetDefault("jobs.max_concurrent", def.Jobs.MaxConcurrent)
	v.SetDefault("jobs.heartbeat_interval", def.Jobs.HeartbeatInterval)
	v.SetDefault("jobs.retry_max_attempts", def.Jobs.RetryMaxAttempts)
	v.SetDefault("jobs.retry_base_delay", def.Jobs.RetryBaseDelay)
	v.SetDefault("jobs.retention", def.Jobs.Retention)
	v.SetDefault("jobs.resume_incomplete", def.Jobs.ResumeIncomplete)
	v.SetDefault("jobs.audit_log_capacity", def.Jobs.AuditLogCapacity)
	v.SetDefault("evaluator.provider", def.Evaluator.Provider)
	v.SetDefault("evaluator.base_url", def.Evaluator.BaseURL)
	v.SetDefault("evaluator.api_key", "")
	v.SetDefault("evaluator.model", def.Evaluator.Model)
	v.SetDefault("evaluator.timeout", def.Evaluator.Timeout)
	v.SetDefault("evaluator.mock_file", "")
	v.SetDefault("rules.dir", def.Rules.Dir)
	v.SetDefault("prompts.file", def.Prompts.File)
	v.SetDefault("documents.staging_dir", def.Documents.StagingDir)
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("jobs.max_concurrent must be at least 1, got %d", c.Jobs.MaxConcurrent)
	}
	if c.Jobs.RetryMaxAttempts < 1 {
		return fmt.Errorf("jobs.retry_max_attempts must be at least 1, got %d", c.Jobs.RetryMaxAttempts)
	}
	if c.Jobs.HeartbeatInterval <= 0 {
		return fmt.Errorf("jobs.heartbeat_interval must be positive, got %v", c.Jobs.HeartbeatInterval)
	}
	if c.Jobs.Retention <= 0 {
		return fmt.Errorf("jobs.retention must be positive, got %v", c.Jobs.Retention)
	}
	if c.Jobs.AuditLogCapacity < 1 {
		return fmt.Errorf("jobs.audit_log_capacity must be at least 1, got %d", c.Jobs.AuditLogCapacity)
	}
	switch c.Evaluator.Provider {
	case "openai":
		if c.Evaluator.BaseURL == "" {
			return fmt.Errorf("evaluator.base_url is required for the openai provider")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown evaluator.provider %q", c.Evaluator.Provider)
	}
	return nil
}
