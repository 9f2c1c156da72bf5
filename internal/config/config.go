// Package config holds the coordinator's runtime configuration, loaded in
// the same three-layer priority the teacher's core.Config uses: defaults,
// then environment variables, then functional options, with an optional
// YAML file layered in between the defaults and the environment variables.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config aggregates every subsystem's tunables. Field groups mirror the
// component list in spec.md §2.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Bus       BusConfig       `yaml:"bus"`
	Alignment AlignmentConfig `yaml:"alignment"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Emergence EmergenceConfig `yaml:"emergence"`
	Gate      GateConfig      `yaml:"gate"`
	CLI       CLIConfig       `yaml:"cli"`
}

// TransportConfig selects and configures the tool-RPC transport.
type TransportConfig struct {
	HTTP bool   `yaml:"http" env:"COORDINATOR_HTTP"`
	Port int    `yaml:"port" env:"COORDINATOR_PORT" default:"8000"`
}

// BusConfig configures the Observation Bus (§4.A).
type BusConfig struct {
	RingCapacity      int    `yaml:"ring_capacity" env:"COORDINATOR_BUS_RING" default:"10000"`
	AlertRingCapacity int    `yaml:"alert_ring_capacity" env:"COORDINATOR_BUS_ALERT_RING" default:"1000"`
	SnapshotInterval  int    `yaml:"snapshot_interval_seconds" env:"COORDINATOR_BUS_SNAPSHOT_SECONDS" default:"5"`
	SnapshotRing      int    `yaml:"snapshot_ring_capacity" default:"720"`

	PersistenceEnabled bool   `yaml:"persistence_enabled" env:"COORDINATOR_PERSIST_ENABLED"`
	PersistenceDir     string `yaml:"persistence_dir" env:"COORDINATOR_PERSIST_DIR" default:"./flows"`
	PersistenceGzip    bool   `yaml:"persistence_gzip" env:"COORDINATOR_PERSIST_GZIP"`
	PersistenceMaxBytes int64 `yaml:"persistence_max_bytes" default:"10485760"`
	PersistenceBufferSize int `yaml:"persistence_buffer_size" default:"100"`

	RedisSinkEnabled bool   `yaml:"redis_sink_enabled" env:"COORDINATOR_REDIS_SINK_ENABLED"`
	RedisURL         string `yaml:"redis_url" env:"COORDINATOR_REDIS_URL" default:"redis://localhost:6379"`
	RedisStream      string `yaml:"redis_stream" default:"coordinator:flow_events"`
}

// AlignmentConfig configures the Scorer's weighted summary (§4.B).
type AlignmentConfig struct {
	KnowledgeWeight    float64 `yaml:"knowledge_weight" default:"0.2"`
	GoalsWeight        float64 `yaml:"goals_weight" default:"0.2"`
	TerminologyWeight  float64 `yaml:"terminology_weight" default:"0.2"`
	AssumptionsWeight  float64 `yaml:"assumptions_weight" default:"0.2"`
	ContextWeight      float64 `yaml:"context_weight" default:"0.2"`
}

// NegotiationConfig configures session defaults (§4.C).
type NegotiationConfig struct {
	DefaultTimeoutSeconds int    `yaml:"default_timeout_seconds" default:"300"`
	MaxRounds             int    `yaml:"max_rounds" default:"10"`
	MaxExtensions         int    `yaml:"max_extensions" default:"3"`
	RequireValidation     bool   `yaml:"require_validation" default:"true"`
	TimeoutPolicy         string `yaml:"timeout_policy" default:"fail"`
}

// EmergenceConfig configures the variant engine's thresholds (§4.D).
type EmergenceConfig struct {
	MinSuccessRate       float64 `yaml:"min_success_rate" default:"0.90"`
	MaxLatencyMS         float64 `yaml:"max_latency_ms" default:"5000"`
	ErrorSpikeThreshold  int     `yaml:"error_spike_threshold" default:"10"`
	FailureThreshold     int     `yaml:"failure_threshold" default:"5"`
	HalfOpenSuccessThreshold int `yaml:"half_open_success_threshold" default:"3"`
	ResetTimeoutSeconds  int     `yaml:"reset_timeout_seconds" default:"30"`
	FlapWindowMinutes    int     `yaml:"flap_window_minutes" default:"60"`
	FlapThreshold        int     `yaml:"flap_threshold" default:"5"`
	TrendWindowSize      int     `yaml:"trend_window_size" default:"5"`
	FastThreshold        float64 `yaml:"fast_threshold" default:"0.98"`
	SlowThreshold        float64 `yaml:"slow_threshold" default:"0.93"`
	PauseThreshold       float64 `yaml:"pause_threshold" default:"0.90"`
	DefaultCanarySteps   int     `yaml:"default_canary_steps" default:"10"`
	RollbackRingCapacity int     `yaml:"rollback_ring_capacity" default:"200"`
	MinSampleSize        int     `yaml:"min_sample_size" default:"100"`
	TrackOutcomes        bool    `yaml:"track_outcomes" default:"true"`
	ABSignificanceLevel  float64 `yaml:"ab_significance_level" default:"0.95"`
}

// GateConfig configures the Orchestrator's alignment gate (§4.E).
type GateConfig struct {
	RequiredAlignedStrategies int     `yaml:"required_aligned_strategies" default:"3"`
	MinAlignmentConfidence    float64 `yaml:"min_alignment_confidence" default:"0.6"`
	AutoAcceptThreshold       float64 `yaml:"auto_accept_threshold" default:"0.9"`
}

// CLIConfig configures dashboard/analytics commands.
type CLIConfig struct {
	RefreshSeconds int    `yaml:"refresh_seconds" default:"2"`
	Mode           string `yaml:"mode" default:"text"`
}

// Default returns a Config populated entirely with spec.md defaults.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{Port: 8000},
		Bus: BusConfig{
			RingCapacity:          10000,
			AlertRingCapacity:     1000,
			SnapshotInterval:      5,
			SnapshotRing:          720,
			PersistenceDir:        "./flows",
			PersistenceMaxBytes:   10 * 1024 * 1024,
			PersistenceBufferSize: 100,
			RedisURL:              "redis://localhost:6379",
			RedisStream:           "coordinator:flow_events",
		},
		Alignment: AlignmentConfig{
			KnowledgeWeight: 0.2, GoalsWeight: 0.2, TerminologyWeight: 0.2,
			AssumptionsWeight: 0.2, ContextWeight: 0.2,
		},
		Negotiation: NegotiationConfig{
			DefaultTimeoutSeconds: 300, MaxRounds: 10, MaxExtensions: 3,
			RequireValidation: true, TimeoutPolicy: "fail",
		},
		Emergence: EmergenceConfig{
			MinSuccessRate: 0.90, MaxLatencyMS: 5000, ErrorSpikeThreshold: 10,
			FailureThreshold: 5, HalfOpenSuccessThreshold: 3, ResetTimeoutSeconds: 30,
			FlapWindowMinutes: 60, FlapThreshold: 5, TrendWindowSize: 5,
			FastThreshold: 0.98, SlowThreshold: 0.93, PauseThreshold: 0.90,
			DefaultCanarySteps: 10, RollbackRingCapacity: 200, MinSampleSize: 100,
			TrackOutcomes: true, ABSignificanceLevel: 0.95,
		},
		Gate: GateConfig{
			RequiredAlignedStrategies: 3, MinAlignmentConfidence: 0.6, AutoAcceptThreshold: 0.9,
		},
		CLI: CLIConfig{RefreshSeconds: 2, Mode: "text"},
	}
}

// Option mutates a Config; applied after env vars, matching the teacher's
// three-layer priority (functional options win).
type Option func(*Config)

// WithHTTP selects the HTTP transport on the given port.
func WithHTTP(port int) Option {
	return func(c *Config) {
		c.Transport.HTTP = true
		c.Transport.Port = port
	}
}

// WithPersistence enables the file persistence sink.
func WithPersistence(dir string, gzip bool) Option {
	return func(c *Config) {
		c.Bus.PersistenceEnabled = true
		c.Bus.PersistenceDir = dir
		c.Bus.PersistenceGzip = gzip
	}
}

// Load builds a Config from defaults, then an optional YAML file, then
// environment variables, then the supplied options, in ascending
// priority.
func Load(yamlPath string, opts ...Option) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// applyEnv overlays recognized environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("COORDINATOR_HTTP"); v == "true" {
		cfg.Transport.HTTP = true
	}
	if v := os.Getenv("COORDINATOR_PORT"); v != "" {
		if n, ok := atoiSafe(v); ok {
			cfg.Transport.Port = n
		}
	}
	if v := os.Getenv("COORDINATOR_BUS_RING"); v != "" {
		if n, ok := atoiSafe(v); ok {
			cfg.Bus.RingCapacity = n
		}
	}
	if v := os.Getenv("COORDINATOR_BUS_ALERT_RING"); v != "" {
		if n, ok := atoiSafe(v); ok {
			cfg.Bus.AlertRingCapacity = n
		}
	}
	if v := os.Getenv("COORDINATOR_BUS_SNAPSHOT_SECONDS"); v != "" {
		if n, ok := atoiSafe(v); ok {
			cfg.Bus.SnapshotInterval = n
		}
	}
	if v := os.Getenv("COORDINATOR_PERSIST_ENABLED"); v == "true" {
		cfg.Bus.PersistenceEnabled = true
	}
	if v := os.Getenv("COORDINATOR_PERSIST_DIR"); v != "" {
		cfg.Bus.PersistenceDir = v
	}
	if v := os.Getenv("COORDINATOR_PERSIST_GZIP"); v == "true" {
		cfg.Bus.PersistenceGzip = true
	}
	if v := os.Getenv("COORDINATOR_REDIS_SINK_ENABLED"); v == "true" {
		cfg.Bus.RedisSinkEnabled = true
	}
	if v := os.Getenv("COORDINATOR_REDIS_URL"); v != "" {
		cfg.Bus.RedisURL = v
	}
}

func atoiSafe(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
