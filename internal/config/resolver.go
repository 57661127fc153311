// Package config resolves doula configuration from CLI flags,
// environment variables, a yaml config file, and built-in defaults, in
// that precedence order. Every resolved value remembers where it came
// from so `doula config` can explain itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries CLI flag overrides into resolution.
type ResolveOptions struct {
	ConfigPath    string
	CLIDBPath     string
	CLIEmbed      string
	CLIGuidelines string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath         ResolvedValue `json:"db_path"`
	GuidelinesPath ResolvedValue `json:"guidelines_path"`

	EmbedProvider ResolvedValue `json:"embed_provider"`
	EmbedModel    ResolvedValue `json:"embed_model"`
	EmbedEndpoint ResolvedValue `json:"embed_endpoint"`
	EmbedAPIKey   ResolvedValue `json:"embed_api_key"`
	EmbedModelDir ResolvedValue `json:"embed_model_dir"`
}

type fileConfig struct {
	DBPath     string `yaml:"db_path"`
	Guidelines string `yaml:"guidelines"`
	Embed      struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
		ModelDir string `yaml:"model_dir"`
	} `yaml:"embed"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".doula", "config.yaml")
}

// ResolveConfig resolves every configurable value, lowest precedence first.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.GuidelinesPath, cfg.Guidelines, SourceConfig, path)
		apply(&out.EmbedProvider, cfg.Embed.Provider, SourceConfig, path)
		apply(&out.EmbedModel, cfg.Embed.Model, SourceConfig, path)
		apply(&out.EmbedEndpoint, cfg.Embed.Endpoint, SourceConfig, path)
		apply(&out.EmbedAPIKey, cfg.Embed.APIKey, SourceConfig, path)
		apply(&out.EmbedModelDir, cfg.Embed.ModelDir, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "DOULA_DB")
	applyEnv(&out.DBPath, "DOULA_DB_PATH")
	applyEnv(&out.GuidelinesPath, "DOULA_GUIDELINES")
	applyEnv(&out.EmbedProvider, "DOULA_EMBED")
	applyEnv(&out.EmbedModel, "DOULA_EMBED_MODEL")
	applyEnv(&out.EmbedEndpoint, "DOULA_EMBED_ENDPOINT")
	applyEnv(&out.EmbedAPIKey, "DOULA_EMBED_API_KEY")
	applyEnv(&out.EmbedModelDir, "DOULA_EMBED_MODEL_DIR")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.EmbedProvider, opts.CLIEmbed, SourceCLI, "--embed")
	apply(&out.GuidelinesPath, opts.CLIGuidelines, SourceCLI, "--guidelines")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.GuidelinesPath.Value != "" {
		out.GuidelinesPath.Value = expandUserPath(out.GuidelinesPath.Value)
	}

	return out, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
