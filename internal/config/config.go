// Package config loads the governance gate configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the recognized set of options under the "liquibase"
// section of the configuration file.
type Config struct {
	// ChangelogPaths lists the path prefixes under governance. A changed
	// file is only considered when it sits under one of these prefixes.
	ChangelogPaths []string `yaml:"changelogPaths"`

	// FileExtensions lists the file suffixes considered changelogs.
	FileExtensions []string `yaml:"fileExtensions"`

	// BaseBranchPatterns are glob patterns for base branch names the
	// gate applies to. A non-matching base branch skips the whole check.
	BaseBranchPatterns []string `yaml:"baseBranchPatterns"`

	// ExceptionsFile points at the YAML allow-list, optional.
	ExceptionsFile string `yaml:"exceptionsFile"`
}

// Defaults applied when the section leaves an option unset.
var (
	DefaultFileExtensions     = []string{".xml"}
	DefaultBaseBranchPatterns = []string{"main"}
)

// ConfigError reports configuration that cannot be used at all; the
// run aborts before any processing.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Path, e.Message)
}

// Load reads and validates the configuration file at path. A missing
// "liquibase" section is a ConfigError, matching the gate's contract of
// refusing to run unconfigured rather than silently passing everything.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Message: err.Error()}
	}

	var doc struct {
		Liquibase *Config `yaml:"liquibase"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Path: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if doc.Liquibase == nil {
		return nil, &ConfigError{Path: path, Message: `missing "liquibase" section`}
	}

	cfg := doc.Liquibase
	if len(cfg.FileExtensions) == 0 {
		cfg.FileExtensions = DefaultFileExtensions
	}
	if len(cfg.BaseBranchPatterns) == 0 {
		cfg.BaseBranchPatterns = DefaultBaseBranchPatterns
	}
	return cfg, nil
}
