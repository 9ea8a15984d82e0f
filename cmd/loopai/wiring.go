package main

import (
	"encoding/json"
	"fmt"
	"os"

	"loopai/internal/cache"
	"loopai/internal/config"
	"loopai/internal/generate"
	"loopai/internal/logging"
	"loopai/internal/model"
	"loopai/internal/oracle"
	"loopai/internal/runtime"
	"loopai/internal/sampling"
	"loopai/internal/sandbox"
	"loopai/internal/store"
	"loopai/internal/synthesis"
	"loopai/internal/validate"
)

// loadConfig reads the --config file, or returns defaults when none was
// given.
func loadConfig() (*config.Config, error) {
	if rootFlags.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(rootFlags.configPath)
}

// buildRuntime assembles the full pipeline from configuration. The caller
// owns the returned runtime and must Close it.
func buildRuntime(cfg *config.Config) (*runtime.Runtime, store.Store, error) {
	logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	if cfg.Synthesis.BaseURL == "" {
		return nil, nil, fmt.Errorf("synthesis.base_url is required")
	}
	synthClient, err := synthesis.New(cfg.Synthesis.BaseURL,
		synthesis.WithTimeout(cfg.Synthesis.Timeout()),
		synthesis.WithVerbose(cfg.Synthesis.Verbose),
		synthesis.WithLogger(logging.New("synthesis")),
	)
	if err != nil {
		return nil, nil, err
	}

	artifactCache := cache.New(cfg.Cache, logging.New("cache"))
	generator := generate.New(artifactCache, synthClient, cfg.Synthesis, logging.New("generate"))
	executor := sandbox.New(cfg.Sandbox, logging.New("sandbox"))
	sampler, err := sampling.NewController(cfg.Sampling.DefaultRate, cfg.Sampling.TaskRates)
	if err != nil {
		return nil, nil, err
	}
	validator := validate.NewEngine(cfg.Validate, logging.New("validate"))

	var records store.Store
	if cfg.Store.Path != "" {
		records, err = store.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
	}

	var answers runtime.Oracle
	if cfg.Oracle.Enabled {
		answers = oracle.New(cfg.Oracle, logging.New("oracle"))
	}

	rt, err := runtime.New(runtime.Options{
		Cache:     artifactCache,
		Generator: generator,
		Executor:  executor,
		Sampler:   sampler,
		Validator: validator,
		Oracle:    answers,
		Store:     records,
		Logger:    logging.New("runtime"),
	})
	if err != nil {
		if records != nil {
			_ = records.Close()
		}
		return nil, nil, err
	}
	return rt, records, nil
}

// loadTask reads a task specification JSON file.
func loadTask(path string) (*model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	var task model.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("parse task file %s: %w", path, err)
	}
	if task.ID == "" {
		return nil, fmt.Errorf("task file %s: id is required", path)
	}
	if task.TargetRuntime == "" {
		task.TargetRuntime = "python3"
	}
	return &task, nil
}

// loadDocument reads a JSON document from a file, or from the literal
// string when it starts with '{'.
func loadDocument(pathOrJSON string) (model.Document, error) {
	raw := []byte(pathOrJSON)
	if len(pathOrJSON) == 0 || pathOrJSON[0] != '{' {
		var err error
		raw, err = os.ReadFile(pathOrJSON)
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
	}
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
