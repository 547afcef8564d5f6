package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guard.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `liquibase:
  changelogPaths:
    - db/changelog
  fileExtensions:
    - .xml
    - .lb.xml
  baseBranchPatterns:
    - main
    - release/*
  exceptionsFile: db/exceptions.yml
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"db/changelog"}, cfg.ChangelogPaths)
	assert.Equal(t, []string{".xml", ".lb.xml"}, cfg.FileExtensions)
	assert.Equal(t, []string{"main", "release/*"}, cfg.BaseBranchPatterns)
	assert.Equal(t, "db/exceptions.yml", cfg.ExceptionsFile)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `liquibase:
  changelogPaths:
    - db/changelog
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultFileExtensions, cfg.FileExtensions)
	assert.Equal(t, DefaultBaseBranchPatterns, cfg.BaseBranchPatterns)
	assert.Empty(t, cfg.ExceptionsFile)
}

func TestLoadMissingSection(t *testing.T) {
	path := writeConfig(t, `other:
  key: value
`)

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "liquibase")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "liquibase: [not a mapping")
	_, err := Load(path)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "invalid YAML")
}
