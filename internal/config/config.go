// Package config loads the runtime-tunable knobs of the simulation core:
// thread-pool sizing, snapshot-pool warm capacity, recorder keyframe
// interval, ELM construction timeouts, and the lockstep peer list. It
// follows the pack's runtime-config pattern (YAML on disk, environment
// overrides on top) rather than inventing a bespoke flag parser.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig is the full set of values a simcore process needs to
// stand up a Host, a recorder, and (optionally) a lockstep group.
type RuntimeConfig struct {
	ThreadPoolSize int `yaml:"thread_pool_size"`

	SnapshotPoolWarm int `yaml:"snapshot_pool_warm"`

	RecorderKeyframeInterval int `yaml:"recorder_keyframe_interval"`

	// Timeouts are stored in milliseconds rather than as time.Duration —
	// yaml.v3 has no built-in "3s"-style duration scalar decoding, and a
	// bespoke UnmarshalYAML just to get that syntax isn't worth it here.
	ConstructionTimeoutMs int `yaml:"construction_timeout_ms"`
	GhostTimeoutMs        int `yaml:"ghost_timeout_ms"`

	LockstepPeers []string `yaml:"lockstep_peers"`
}

// ConstructionTimeout returns the configured construction timeout as a
// time.Duration.
func (c RuntimeConfig) ConstructionTimeout() time.Duration {
	return time.Duration(c.ConstructionTimeoutMs) * time.Millisecond
}

// GhostTimeout returns the configured ghost timeout as a time.Duration.
func (c RuntimeConfig) GhostTimeout() time.Duration {
	return time.Duration(c.GhostTimeoutMs) * time.Millisecond
}

// Default returns the configuration a standalone, single-process run
// should use absent any file or environment override.
func Default() RuntimeConfig {
	return RuntimeConfig{
		ThreadPoolSize:           4,
		SnapshotPoolWarm:         2,
		RecorderKeyframeInterval: 300,
		ConstructionTimeoutMs:    2000,
		GhostTimeoutMs:           5000,
	}
}

// Load reads path (if it exists — a missing file is not an error, the
// default applies) and then applies environment overrides, in that
// order, so SIMCORE_* env vars always win over the file.
func Load(path string) (RuntimeConfig, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return cfg, fmt.Errorf("config: read %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

const (
	envThreadPoolSize           = "SIMCORE_THREAD_POOL_SIZE"
	envSnapshotPoolWarm         = "SIMCORE_SNAPSHOT_POOL_WARM"
	envRecorderKeyframeInterval = "SIMCORE_RECORDER_KEYFRAME_INTERVAL"
)

func applyEnvOverrides(cfg *RuntimeConfig) error {
	if v, ok := os.LookupEnv(envThreadPoolSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", envThreadPoolSize, err)
		}
		cfg.ThreadPoolSize = n
	}
	if v, ok := os.LookupEnv(envSnapshotPoolWarm); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", envSnapshotPoolWarm, err)
		}
		cfg.SnapshotPoolWarm = n
	}
	if v, ok := os.LookupEnv(envRecorderKeyframeInterval); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", envRecorderKeyframeInterval, err)
		}
		cfg.RecorderKeyframeInterval = n
	}
	return nil
}

// Validate reports the first configuration value that would leave the
// host unable to start.
func (c RuntimeConfig) Validate() error {
	if c.ThreadPoolSize < 1 {
		return fmt.Errorf("config: thread_pool_size must be >= 1, got %d", c.ThreadPoolSize)
	}
	if c.SnapshotPoolWarm < 0 {
		return fmt.Errorf("config: snapshot_pool_warm must be >= 0, got %d", c.SnapshotPoolWarm)
	}
	if c.RecorderKeyframeInterval < 1 {
		return fmt.Errorf("config: recorder_keyframe_interval must be >= 1, got %d", c.RecorderKeyframeInterval)
	}
	return nil
}
