package config

import "time"

// GateConfig is the gate's own configuration document.
type GateConfig struct {
	Log        LogConfig         `yaml:"log" json:"log"`
	Validators []ValidatorConfig `yaml:"validators" json:"validators" validate:"omitempty,dive"`
	Quota      QuotaConfig       `yaml:"quota" json:"quota"`
	Server     ServerConfig      `yaml:"server" json:"server"`
	Worker     WorkerConfig      `yaml:"worker" json:"worker"`
}

// LogConfig selects log verbosity and encoding. An empty format lets the CLI
// choose console output on terminals and JSON elsewhere.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format,omitempty" json:"format,omitempty" validate:"omitempty,oneof=json console"`
}

// ValidatorConfig enables one validator at its position in the chain.
type ValidatorConfig struct {
	Name          string `yaml:"name" json:"name" validate:"required,validator_name"`
	FailClosed    bool   `yaml:"fail_closed,omitempty" json:"fail_closed,omitempty"`
	DefaultLimit  int    `yaml:"default_limit,omitempty" json:"default_limit,omitempty" validate:"omitempty,min=1,max=10000"`
	RequireStages bool   `yaml:"require_stages,omitempty" json:"require_stages,omitempty"`
}

// QuotaConfig is the default token bucket applied to every application,
// with optional per-application overrides. PerMinute of zero disables quotas.
type QuotaConfig struct {
	PerMinute    float64                      `yaml:"per_minute,omitempty" json:"per_minute,omitempty" validate:"gte=0"`
	Burst        int                          `yaml:"burst,omitempty" json:"burst,omitempty" validate:"gte=0"`
	Applications map[string]QuotaPolicyConfig `yaml:"applications,omitempty" json:"applications,omitempty" validate:"omitempty,dive"`
}

// QuotaPolicyConfig overrides the quota for one application.
type QuotaPolicyConfig struct {
	PerMinute float64 `yaml:"per_minute" json:"per_minute" validate:"gte=0"`
	Burst     int     `yaml:"burst,omitempty" json:"burst,omitempty" validate:"gte=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address         string        `yaml:"address,omitempty" json:"address,omitempty" validate:"omitempty,hostname_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty" validate:"omitempty,min=1ms"`
}

// WorkerConfig configures the start request worker. A paused worker leaves
// requests queued until resumed over the API.
type WorkerConfig struct {
	Paused       bool          `yaml:"paused,omitempty" json:"paused,omitempty"`
	Concurrency  int           `yaml:"concurrency,omitempty" json:"concurrency,omitempty" validate:"omitempty,min=1,max=256"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty" validate:"omitempty,min=1ms"`
	AckTimeout   time.Duration `yaml:"ack_timeout,omitempty" json:"ack_timeout,omitempty" validate:"omitempty,min=1ms"`
}

// PipelinesFile holds pipeline definitions and optional state used to seed
// the in-memory stores.
type PipelinesFile struct {
	Pipelines []PipelineConfig `yaml:"pipelines" json:"pipelines" validate:"required,min=1,dive"`
	State     StateConfig      `yaml:"state,omitempty" json:"state,omitempty"`
}

// PipelineConfig is the serialised form of a pipeline definition. Stage
// graph problems are deliberately not rejected here; the stage-graph
// validator reports them when the pipeline is checked.
type PipelineConfig struct {
	ID                      string        `yaml:"id" json:"id" validate:"required,ref_id"`
	Name                    string        `yaml:"name" json:"name" validate:"required,max=200"`
	Application             string        `yaml:"application" json:"application" validate:"required,ref_id"`
	Disabled                bool          `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	LimitConcurrent         bool          `yaml:"limit_concurrent,omitempty" json:"limit_concurrent,omitempty"`
	MaxConcurrentExecutions int           `yaml:"max_concurrent_executions,omitempty" json:"max_concurrent_executions,omitempty" validate:"gte=0"`
	Stages                  []StageConfig `yaml:"stages,omitempty" json:"stages,omitempty" validate:"omitempty,dive"`
}

// StageConfig is the serialised form of a stage.
type StageConfig struct {
	RefID                string                 `yaml:"ref_id" json:"ref_id" validate:"omitempty,ref_id"`
	Name                 string                 `yaml:"name,omitempty" json:"name,omitempty"`
	Type                 string                 `yaml:"type" json:"type"`
	RequisiteStageRefIDs []string               `yaml:"requisite_stage_ref_ids,omitempty" json:"requisite_stage_ref_ids,omitempty"`
	Context              map[string]interface{} `yaml:"context,omitempty" json:"context,omitempty"`
}

// StateConfig seeds running executions and locks.
type StateConfig struct {
	Running map[string]int `yaml:"running,omitempty" json:"running,omitempty" validate:"omitempty,dive,gte=0"`
	Locks   []LockConfig   `yaml:"locks,omitempty" json:"locks,omitempty" validate:"omitempty,dive"`
}

// LockConfig describes an external lockout.
type LockConfig struct {
	Scope  string `yaml:"scope" json:"scope" validate:"required,oneof=application pipeline"`
	Target string `yaml:"target" json:"target" validate:"required"`
	Owner  string `yaml:"owner" json:"owner" validate:"required"`
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`
}
