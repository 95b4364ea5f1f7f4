// Package config holds deadwood's configuration, loadable from TOML,
// YAML, or JSON files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AnalyzeTarget selects which declaration kinds the unused-export report
// considers.
type AnalyzeTarget string

const (
	TargetTypes  AnalyzeTarget = "types"
	TargetValues AnalyzeTarget = "values"
	TargetAll    AnalyzeTarget = "all"
)

// ParseTarget converts a string to an AnalyzeTarget.
func ParseTarget(s string) (AnalyzeTarget, error) {
	switch strings.ToLower(s) {
	case "types":
		return TargetTypes, nil
	case "values":
		return TargetValues, nil
	case "all", "":
		return TargetAll, nil
	default:
		return "", fmt.Errorf("invalid analyze target %q (expected types, values, or all)", s)
	}
}

// Config holds all configuration options for deadwood.
type Config struct {
	// Root is the directory to scan.
	Root string `koanf:"root"`

	// Target filters the unused-export report: types, values, or all.
	Target string `koanf:"target"`

	// Format selects output rendering: text, json, or markdown.
	Format string `koanf:"format"`

	// IgnoredFolders are skipped during discovery, relative to the root.
	IgnoredFolders []string `koanf:"ignored_folders"`

	// IgnoreFile is the name of the project ignore file, read from the
	// scan root with gitignore syntax.
	IgnoreFile string `koanf:"ignore_file"`

	// Workers bounds the parse worker pool; 0 means 2x NumCPU.
	Workers int `koanf:"workers"`

	// Dev also checks devDependencies when reporting unused packages.
	Dev bool `koanf:"dev"`

	Verbose bool `koanf:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Root:       ".",
		Target:     string(TargetAll),
		Format:     "text",
		IgnoreFile: ".deadwoodignore",
		IgnoredFolders: []string{
			"node_modules",
			"dist",
			"build",
		},
	}
}

// Load loads configuration from a file, choosing the parser by extension.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if _, err := ParseTarget(cfg.Target); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault tries standard config locations and falls back to
// defaults when none exists.
func LoadOrDefault() *Config {
	configNames := []string{
		"deadwood.toml",
		"deadwood.yaml",
		"deadwood.yml",
		"deadwood.json",
		".deadwood.toml",
		".deadwood.yaml",
		".deadwood.yml",
		".deadwood.json",
	}

	for _, name := range configNames {
		if _, err := os.Stat(name); err == nil {
			if cfg, err := Load(name); err == nil {
				return cfg
			}
		}
	}

	return DefaultConfig()
}
