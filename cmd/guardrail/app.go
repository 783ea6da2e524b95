package main

import (
	"fmt"

	"guardrail/internal/config"
	"guardrail/internal/docstore"
	"guardrail/internal/evaluator"
	"guardrail/internal/jobs"
	"guardrail/internal/logging"
	"guardrail/internal/prompts"
	"guardrail/internal/ruleset"
)

// app holds the wired engine components shared by the serve and check
// commands.
type app struct {
	cfg    config.Config
	logger logging.Logger
	store  *jobs.FileStore
	rules  ruleset.Provider
	runner *jobs.Runner
	audit  *jobs.AuditLog
}

// buildApp loads configuration and wires the engine.
func buildApp(configPath, component string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger(component)

	store, err := jobs.NewFileStore(cfg.Jobs.DataDir, cfg.Jobs.Retention, logger)
	if err != nil {
		return nil, err
	}

	docs, err := docstore.NewStore(cfg.Documents.StagingDir, logger)
	if err != nil {
		return nil, err
	}

	rules := ruleset.NewDirProvider(cfg.Rules.Dir, logger)

	templates := prompts.Default()
	if cfg.Prompts.File != "" {
		templates, err = prompts.LoadFile(cfg.Prompts.File)
		if err != nil {
			return nil, fmt.Errorf("load prompt templates: %w", err)
		}
	}

	eval, err := buildEvaluator(cfg.Evaluator, logger)
	if err != nil {
		return nil, err
	}

	audit, err := jobs.NewAuditLog(cfg.Jobs.AuditLogCapacity)
	if err != nil {
		return nil, fmt.Errorf("create audit log: %w", err)
	}

	runnerCfg := jobs.Config{
		MaxConcurrent:     cfg.Jobs.MaxConcurrent,
		HeartbeatInterval: cfg.Jobs.HeartbeatInterval,
		RetryMaxAttempts:  cfg.Jobs.RetryMaxAttempts,
		RetryBaseDelay:    cfg.Jobs.RetryBaseDelay,
		ResumeIncomplete:  cfg.Jobs.ResumeIncomplete,
	}
	runner := jobs.NewRunner(store, docs, eval, rules, templates, audit, jobs.DefaultMetrics(), runnerCfg, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		rules:  rules,
		runner: runner,
		audit:  audit,
	}, nil
}

func buildEvaluator(cfg config.EvaluatorConfig, logger logging.Logger) (evaluator.Evaluator, error) {
	switch cfg.Provider {
	case "mock":
		return evaluator.NewMockClient(cfg.MockFile, logger)
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("evaluator.api_key is required for the openai provider")
		}
		return evaluator.NewOpenAIClient(evaluator.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown evaluator provider %q", cfg.Provider)
	}
}
