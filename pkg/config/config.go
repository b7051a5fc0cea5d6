// Package config loads fleetsense configuration from defaults, an
// optional YAML file, and FLEETSENSE_-prefixed environment variables,
// in that order of precedence.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Hosted    HostedConfig    `koanf:"hosted"`
	Local     LocalConfig     `koanf:"local"`
	Rules     RulesConfig     `koanf:"rules"`
	Analysis  AnalysisConfig  `koanf:"analysis"`
	Dataset   DatasetConfig   `koanf:"dataset"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// HostedConfig configures the hosted inference tier. The tier is
// considered configured only when a token is present.
type HostedConfig struct {
	Token          string `koanf:"token"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
	PromptLimit    int    `koanf:"prompt_limit"`
}

// LocalConfig configures the local model tier. The tier is considered
// configured only when a base URL is present.
type LocalConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// BandConfig mirrors a rule-engine classification band.
type BandConfig struct {
	Low      float64 `koanf:"low"`
	High     float64 `koanf:"high"`
	Critical float64 `koanf:"critical"`
}

type RulesConfig struct {
	CPU    BandConfig `koanf:"cpu"`
	Memory BandConfig `koanf:"memory"`
	Disk   BandConfig `koanf:"disk"`
}

type AnalysisConfig struct {
	Mode                  string `koanf:"mode"` // auto, hosted, local, rules
	MinUsableLength       int    `koanf:"min_usable_length"`
	MaxTokens             int    `koanf:"max_tokens"`
	AttemptTimeoutSeconds int    `koanf:"attempt_timeout_seconds"`
}

type DatasetConfig struct {
	Driver string `koanf:"driver"` // sqlite, csv
	Path   string `koanf:"path"`
}

// Load reads configuration with layered precedence: built-in defaults,
// then the YAML file at path (if non-empty), then environment variables
// (FLEETSENSE_HOSTED_TOKEN -> hosted.token).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")

	k.Set("hosted.timeout_seconds", 90)
	k.Set("hosted.prompt_limit", 800)

	k.Set("local.base_url", "http://localhost:11434")
	k.Set("local.model", "qwen2.5:3b-instruct")

	k.Set("rules.cpu.low", 20.0)
	k.Set("rules.cpu.high", 70.0)
	k.Set("rules.cpu.critical", 90.0)
	k.Set("rules.memory.low", 30.0)
	k.Set("rules.memory.high", 80.0)
	k.Set("rules.memory.critical", 90.0)
	k.Set("rules.disk.high", 80.0)
	k.Set("rules.disk.critical", 95.0)

	k.Set("analysis.mode", "auto")
	k.Set("analysis.min_usable_length", 50)
	k.Set("analysis.max_tokens", 400)
	k.Set("analysis.attempt_timeout_seconds", 90)

	k.Set("dataset.driver", "sqlite")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("FLEETSENSE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FLEETSENSE_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
