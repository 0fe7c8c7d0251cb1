// Package config provides configuration loading, validation, and defaults for
// the interview orchestration core.
//
// KEY PRINCIPLES:
//
//  1. SEPARATION OF CONCERNS: configuration holds tunables (models, thresholds,
//     timeouts, persona), never state. Interview state lives in the session store.
//  2. VALUE-BASED ACCESS: Load returns the config by value; callers cannot
//     mutate shared state.
//  3. VALIDATION FIRST: invalid configs are rejected at load time, not at the
//     point of use deep inside a turn.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig indicates a config that failed validation.
var ErrInvalidConfig = errors.New("invalid config")

// Model role constants. Chat drives the interview; Summarizer and Extractor
// may point at a cheaper model.
const (
	DefaultChatModel       = "claude-sonnet-4-20250514"
	DefaultSummarizerModel = "claude-3-5-haiku-20241022"
)

// Defaults mirrored from the interview runtime.
const (
	DefaultCompactionThreshold = 20
	DefaultToolLoopCap         = 5
	DefaultTemperature         = 0.7
	DefaultMaxTokens           = 2048
	DefaultModelTimeout        = 60 * time.Second
	DefaultToolTimeout         = 90 * time.Second
	DefaultPersonaName         = "Dhruv"
)

// ModelCfg holds generation parameters for one model role.
type ModelCfg struct {
	Name        string  `yaml:"name"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Config is the full configuration for the orchestration core.
type Config struct {
	PersonaName         string        `yaml:"persona_name"`
	ChatModel           ModelCfg      `yaml:"chat_model"`
	SummarizerModel     ModelCfg      `yaml:"summarizer_model"`
	CompactionThreshold int           `yaml:"compaction_threshold"`
	ToolLoopCap         int           `yaml:"tool_loop_cap"`
	ModelTimeout        time.Duration `yaml:"model_timeout"`
	ToolTimeout         time.Duration `yaml:"tool_timeout"`
	DBPath              string        `yaml:"db_path"`
}

// Default returns a config populated with defaults; usable without a file.
func Default() Config {
	return Config{
		PersonaName: DefaultPersonaName,
		ChatModel: ModelCfg{
			Name:        DefaultChatModel,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		SummarizerModel: ModelCfg{
			Name:        DefaultSummarizerModel,
			Temperature: 0.3,
			MaxTokens:   1024,
		},
		CompactionThreshold: DefaultCompactionThreshold,
		ToolLoopCap:         DefaultToolLoopCap,
		ModelTimeout:        DefaultModelTimeout,
		ToolTimeout:         DefaultToolTimeout,
		DBPath:              "interviewer.db",
	}
}

// Load reads a YAML config file, fills unset fields with defaults, and
// validates the result. Returns the config by value.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a validated config.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults backfills zero values left by a sparse YAML document.
func (c *Config) applyDefaults() {
	def := Default()
	if c.PersonaName == "" {
		c.PersonaName = def.PersonaName
	}
	if c.ChatModel.Name == "" {
		c.ChatModel.Name = def.ChatModel.Name
	}
	if c.ChatModel.MaxTokens == 0 {
		c.ChatModel.MaxTokens = def.ChatModel.MaxTokens
	}
	if c.SummarizerModel.Name == "" {
		c.SummarizerModel.Name = def.SummarizerModel.Name
	}
	if c.SummarizerModel.MaxTokens == 0 {
		c.SummarizerModel.MaxTokens = def.SummarizerModel.MaxTokens
	}
	if c.CompactionThreshold == 0 {
		c.CompactionThreshold = def.CompactionThreshold
	}
	if c.ToolLoopCap == 0 {
		c.ToolLoopCap = def.ToolLoopCap
	}
	if c.ModelTimeout == 0 {
		c.ModelTimeout = def.ModelTimeout
	}
	if c.ToolTimeout == 0 {
		c.ToolTimeout = def.ToolTimeout
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
}

// Validate rejects configs that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.CompactionThreshold < 4 {
		return fmt.Errorf("%w: compaction_threshold must be >= 4, got %d", ErrInvalidConfig, c.CompactionThreshold)
	}
	if c.ToolLoopCap < 1 {
		return fmt.Errorf("%w: tool_loop_cap must be >= 1, got %d", ErrInvalidConfig, c.ToolLoopCap)
	}
	if c.ChatModel.Temperature < 0 || c.ChatModel.Temperature > 2 {
		return fmt.Errorf("%w: chat model temperature %f out of range [0,2]", ErrInvalidConfig, c.ChatModel.Temperature)
	}
	if c.ChatModel.MaxTokens < 1 {
		return fmt.Errorf("%w: chat model max_tokens must be >= 1", ErrInvalidConfig)
	}
	if c.ModelTimeout <= 0 {
		return fmt.Errorf("%w: model_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
