package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	pipegateerrors "github.com/alexisbeaulieu97/pipegate/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// DefaultGateConfig returns the configuration used when no file is given.
func DefaultGateConfig() *GateConfig {
	return &GateConfig{
		Log: LogConfig{Level: "info"},
		Validators: []ValidatorConfig{
			{Name: "disabled"},
			{Name: "stage-graph"},
			{Name: "lockout"},
			{Name: "concurrent-execution-limit", DefaultLimit: 1},
			{Name: "quota"},
		},
		Server: ServerConfig{
			Address:         "127.0.0.1:8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:  4,
			PollInterval: 100 * time.Millisecond,
			AckTimeout:   time.Minute,
		},
	}
}

// LoadGateConfig parses path, or returns DefaultGateConfig when path is empty.
func LoadGateConfig(path string) (*GateConfig, error) {
	if path == "" {
		return DefaultGateConfig(), nil
	}
	return ParseGateConfig(path)
}

// ParseGateConfig loads a gate configuration file from disk, fills unset
// fields from DefaultGateConfig and validates the result.
func ParseGateConfig(path string) (*GateConfig, error) {
	var cfg GateConfig
	if err := decodeYAMLFile(path, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	if err := ValidateGateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParsePipelines loads a pipelines file from disk and validates it.
func ParsePipelines(path string) (*PipelinesFile, error) {
	var file PipelinesFile
	if err := decodeYAMLFile(path, &file); err != nil {
		return nil, err
	}

	if err := ValidatePipelinesFile(&file); err != nil {
		return nil, err
	}

	return &file, nil
}

// DecodePipelineJSON reads one pipeline definition from r. Unknown fields are rejected.
func DecodePipelineJSON(r io.Reader) (*PipelineConfig, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var p PipelineConfig
	if err := dec.Decode(&p); err != nil {
		return nil, pipegateerrors.NewParseError("request body", 0, err)
	}
	if err := ValidatePipeline(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeYAMLFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipegateerrors.NewParseError(path, 0, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return pipegateerrors.NewParseError(path, 0, fmt.Errorf("document is empty"))
		}
		return pipegateerrors.NewParseError(path, extractLine(err), err)
	}

	return nil
}

func applyDefaults(cfg *GateConfig) {
	defaults := DefaultGateConfig()

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Validators == nil {
		cfg.Validators = defaults.Validators
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaults.Server.Address
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = defaults.Worker.Concurrency
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = defaults.Worker.PollInterval
	}
	if cfg.Worker.AckTimeout == 0 {
		cfg.Worker.AckTimeout = defaults.Worker.AckTimeout
	}
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}
