package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, "build", cfg.BuildDir)
	assert.Equal(t, []string{"**/bin", "**/obj"}, cfg.CleanPatterns)
	assert.Equal(t, "https://api.nuget.org/v3/index.json", cfg.NuGetSource)
	assert.Equal(t, 5, cfg.NuGetParallelism)
	assert.Equal(t, []string{"main", "master"}, cfg.PublishBranches)
	assert.True(t, cfg.BranchesIgnoreCase)
	assert.Equal(t, "dotnet", cfg.Dotnet)
	assert.Equal(t, "dotnet-gitversion", cfg.GitVersion)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
}

func TestLoadFileAndEnv(t *testing.T) {
	root := t.TempDir()
	content := "output_dir = \"dist\"\nnuget_parallelism = 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultFile), []byte(content), 0o644))

	cfg, err := Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, "dist", cfg.OutputDir)
	assert.Equal(t, 2, cfg.NuGetParallelism)

	t.Setenv("RELKIT_OUTPUT", "from-env")
	cfg, err = Load(root, "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OutputDir)
	assert.Equal(t, 2, cfg.NuGetParallelism)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	root := t.TempDir()

	_, err := Load(root, filepath.Join(root, "missing.toml"))
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		preset   string
		expected BuildConfiguration
	}{
		{name: "local", env: map[string]string{}, expected: Debug},
		{name: "azure pipelines", env: map[string]string{"TF_BUILD": "True"}, expected: Release},
		{name: "github actions", env: map[string]string{"GITHUB_ACTIONS": "true"}, expected: Release},
		{name: "disabled CI flag", env: map[string]string{"CI": "false"}, expected: Debug},
		{name: "explicit value wins", env: map[string]string{"CI": "true"}, preset: "debug", expected: Debug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Configuration: tt.preset, OutputDir: "output", BuildDir: "/abs/build"}
			cfg.Resolve("/repo", envMap(tt.env))

			assert.Equal(t, tt.expected, cfg.BuildConfiguration())
			assert.Equal(t, filepath.Join("/repo", "output"), cfg.OutputDir)
			assert.Equal(t, "/abs/build", cfg.BuildDir)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Configuration:    "Release",
			OutputDir:        "output",
			NuGetSource:      "https://api.nuget.org/v3/index.json",
			NuGetParallelism: 5,
			PublishBranches:  []string{"main", "master"},
			LogLevelName:     "info",
		}
	}

	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{name: "valid", modify: func(*Config) {}, ok: true},
		{name: "bad configuration", modify: func(c *Config) { c.Configuration = "Profile" }},
		{name: "bad log level", modify: func(c *Config) { c.LogLevelName = "loud" }},
		{name: "zero parallelism", modify: func(c *Config) { c.NuGetParallelism = 0 }},
		{name: "no branches", modify: func(c *Config) { c.PublishBranches = nil }},
		{name: "empty branch", modify: func(c *Config) { c.PublishBranches = []string{"main", " "} }},
		{name: "no source", modify: func(c *Config) { c.NuGetSource = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseBuildConfiguration(t *testing.T) {
	value, err := ParseBuildConfiguration("RELEASE")
	require.NoError(t, err)
	assert.Equal(t, Release, value)

	_, err = ParseBuildConfiguration("")
	assert.Error(t, err)
}
