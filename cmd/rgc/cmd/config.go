// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package cmd

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/gviegas/rendergraph"
	"github.com/gviegas/rendergraph/scheduler"
)

// ScheduleConfig mirrors scheduler.Flags as a config-file- and
// flag-friendly struct.
type ScheduleConfig struct {
	MinimizeSwitch     bool `mapstructure:"minimize_switch"`
	PipelineAggressive bool `mapstructure:"pipeline_aggressive"`
	MemorySavingBias   bool `mapstructure:"memory_saving_bias"`
	DisableDeadCode    bool `mapstructure:"disable_dead_code"`
}

// Flags translates the config into a scheduler.Flags mask.
func (s ScheduleConfig) Flags() scheduler.Flags {
	var f scheduler.Flags
	if s.MinimizeSwitch {
		f |= scheduler.MinimizeSwitch
	}
	if s.PipelineAggressive {
		f |= scheduler.PipelineAggressive
	}
	if s.MemorySavingBias {
		f |= scheduler.MemorySavingBias
	}
	if s.DisableDeadCode {
		f |= scheduler.DisableDeadCode
	}
	return f
}

// AllocConfig mirrors the render-graph-creation-time memory
// flags (whether unbound nodes are an error, and whether
// the memory planner may alias resources or reuse lifetimes).
type AllocConfig struct {
	NoGpuMemoryAliasing  bool `mapstructure:"no_gpu_memory_aliasing"`
	NoLifetimeAnalysis   bool `mapstructure:"no_lifetime_analysis"`
	DisallowUnboundNodes bool `mapstructure:"disallow_unbound_nodes"`
}

// Flags translates the config into a rendergraph.CreateFlags
// mask.
func (a AllocConfig) Flags() rendergraph.CreateFlags {
	var f rendergraph.CreateFlags
	if a.NoGpuMemoryAliasing {
		f |= rendergraph.NoGpuMemoryAliasing
	}
	if a.NoLifetimeAnalysis {
		f |= rendergraph.NoLifetimeAnalysis
	}
	if a.DisallowUnboundNodes {
		f |= rendergraph.DisallowUnboundNodes
	}
	return f
}

// Config is the full rgc configuration, loadable from a YAML
// profile (e.g. fast.yaml, tight-memory.yaml) layered under
// command-line flag overrides.
type Config struct {
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Alloc    AllocConfig    `mapstructure:"alloc"`
}

// loadConfig reads cfgFile (if non-empty) through viper,
// falling back to all-defaults (every flag off) when no file
// is given. AutomaticEnv is enabled with the RGC_ prefix, but
// Unmarshal only sees keys the config file defines, and with
// no key replacer a nested key's variable keeps its dot
// (RGC_SCHEDULE.MINIMIZE_SWITCH); without a config file no
// environment variable takes effect.
func loadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RGC")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("rgc: reading config %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("rgc: parsing config: %w", err)
	}
	return &cfg, nil
}
