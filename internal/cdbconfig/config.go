// Package cdbconfig loads and validates converter configuration: CLI
// flags merged with an optional YAML file (ambient concern per
// SPEC_FULL.md §6), using gopkg.in/yaml.v3 as the teacher pack's config
// library.
package cdbconfig

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cesiumgs/cdb2tiles/internal/cdberrors"
	"github.com/cesiumgs/cdb2tiles/internal/dataset"
)

// Config is the fully-resolved converter configuration (spec.md §6).
type Config struct {
	Input    string   `yaml:"input"`
	Output   string   `yaml:"output"`
	Combine  []string `yaml:"combine"`
	UseNext  bool     `yaml:"use3dTilesNext"`
	Threads  int      `yaml:"threads"`
	LogLevel string   `yaml:"logLevel"`
	GEVersion string  `yaml:"gltfVersion"`
}

// Default returns a Config with the converter's default values.
func Default() Config {
	return Config{
		Threads:  1,
		LogLevel: "info",
	}
}

// LoadFile reads YAML configuration from path and merges it onto base:
// every key present in the file overrides base's value, and keys absent
// from the file keep base's value. Callers that want command-line flags
// to win re-apply those flags to the result.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, cdberrors.Wrap(cdberrors.IOError, "read config file "+path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, cdberrors.Wrap(cdberrors.ParseFailure, "parse config file "+path, err)
	}
	return cfg, nil
}

// Validate checks the resolved configuration, matching spec.md §6's
// fatal config-error conditions: missing input/output and unrecognised
// --combine dataset names.
func Validate(cfg Config) error {
	if cfg.Input == "" {
		return cdberrors.New(cdberrors.ConfigError, "input directory is required")
	}
	if cfg.Output == "" {
		return cdberrors.New(cdberrors.ConfigError, "output directory is required")
	}
	for _, name := range cfg.Combine {
		if !validDatasetName(name) {
			return cdberrors.New(cdberrors.ConfigError, "unrecognised --combine dataset: "+name+"; valid names: "+joinNames())
		}
	}
	if cfg.Threads < 1 {
		return cdberrors.New(cdberrors.ConfigError, "threads must be >= 1")
	}
	return nil
}

func validDatasetName(name string) bool {
	for _, n := range dataset.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func joinNames() string {
	names := dataset.Names()
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
