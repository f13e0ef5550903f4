// Package config handles configuration loading for the Hollon engine.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the Hollon engine.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Pool       PoolConfig       `mapstructure:"pool"`
	Delegation DelegationConfig `mapstructure:"delegation"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Runner     RunnerConfig     `mapstructure:"runner"`
}

// AnthropicConfig holds Brain Provider API settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. Empty falls back to ANTHROPIC_API_KEY.
	APIKey string `mapstructure:"api_key"`
	// Model is the model used for decomposition and execution.
	Model string `mapstructure:"model"`
	// UseAWSBedrock routes Brain calls through AWS Bedrock.
	UseAWSBedrock bool `mapstructure:"use_aws_bedrock"`
	// AWSRegion is the Bedrock region.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the optional AWS profile name.
	AWSProfile string `mapstructure:"aws_profile"`
	// Timeout bounds a single Brain call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// PoolConfig holds Task Pool settings.
type PoolConfig struct {
	// BackoffBase is the delay after the first failure.
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	// BackoffFactor is the geometric growth factor between failures.
	BackoffFactor int `mapstructure:"backoff_factor"`
	// BackoffCap is the maximum backoff delay.
	BackoffCap time.Duration `mapstructure:"backoff_cap"`
	// EnforceFileAffinity skips claim candidates whose affected files
	// overlap a task already in progress.
	EnforceFileAffinity bool `mapstructure:"enforce_file_affinity"`
}

// DelegationConfig holds Delegation Engine settings.
type DelegationConfig struct {
	// StoryPointThreshold marks tasks above it as complex.
	StoryPointThreshold int `mapstructure:"story_point_threshold"`
	// SkillCountThreshold marks tasks requiring more skills as complex.
	SkillCountThreshold int `mapstructure:"skill_count_threshold"`
	// MaxSubWorkers caps the temporary workers spawned per delegation.
	MaxSubWorkers int `mapstructure:"max_sub_workers"`
	// RoleTemplatePath points to the YAML fallback decomposition template.
	RoleTemplatePath string `mapstructure:"role_template_path"`
}

// EscalationConfig holds Escalation Ladder settings.
type EscalationConfig struct {
	// FailureCeiling is the consecutive-failure count that triggers
	// automatic escalation to level 2 instead of more backoff.
	FailureCeiling int `mapstructure:"failure_ceiling"`
}

// RunnerConfig holds worker-loop settings.
type RunnerConfig struct {
	// IdleInterval is how long an idle worker waits before pulling again.
	IdleInterval time.Duration `mapstructure:"idle_interval"`
	// MaxWorkers caps the concurrent worker loops one runner hosts.
	MaxWorkers int `mapstructure:"max_workers"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.hollon.yaml in current directory or parent)
// 3. User config (~/.config/hollon/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)
	v.SetDefault("anthropic.timeout", "2m")

	v.SetDefault("pool.backoff_base", "5m")
	v.SetDefault("pool.backoff_factor", 3)
	v.SetDefault("pool.backoff_cap", "60m")
	v.SetDefault("pool.enforce_file_affinity", true)

	v.SetDefault("delegation.story_point_threshold", 8)
	v.SetDefault("delegation.skill_count_threshold", 2)
	v.SetDefault("delegation.max_sub_workers", 5)
	v.SetDefault("delegation.role_template_path", "")

	v.SetDefault("escalation.failure_ceiling", 5)

	v.SetDefault("runner.idle_interval", "2s")
	v.SetDefault("runner.max_workers", 16)
}

// getUserConfigDir returns the XDG config directory for Hollon.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "hollon")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "hollon")
	}
	return filepath.Join(home, ".config", "hollon")
}

// findProjectConfig searches for .hollon.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".hollon.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Timeout: 2 * time.Minute,
		},
		Pool: PoolConfig{
			BackoffBase:         5 * time.Minute,
			BackoffFactor:       3,
			BackoffCap:          60 * time.Minute,
			EnforceFileAffinity: true,
		},
		Delegation: DelegationConfig{
			StoryPointThreshold: 8,
			SkillCountThreshold: 2,
			MaxSubWorkers:       5,
		},
		Escalation: EscalationConfig{
			FailureCeiling: 5,
		},
		Runner: RunnerConfig{
			IdleInterval: 2 * time.Second,
			MaxWorkers:   16,
		},
	}
}
