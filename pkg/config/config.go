package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// DefaultFile is looked up in the repository root if no config file was passed.
const DefaultFile = "relkit.toml"

// Config describes all configuration options
type Config struct {
	NuGetAPIKey   string   `toml:"nuget_api_key" env:"NuGetApiKey" usage:"API key used to push packages"`
	Configuration string   `toml:"configuration" env:"Configuration" usage:"Build configuration (Debug or Release)"`
	Solution      string   `toml:"solution" env:"RELKIT_SOLUTION" usage:"Solution file (defaults to the only *.sln in the root)"`
	OutputDir     string   `toml:"output_dir" env:"RELKIT_OUTPUT" default:"output" usage:"Directory receiving the packages"`
	BuildDir      string   `toml:"build_dir" env:"RELKIT_BUILD_DIR" default:"build" usage:"Directory excluded from cleaning"`
	CleanPatterns []string `toml:"clean_patterns" env:"RELKIT_CLEAN_PATTERNS" default:"**/bin,**/obj" usage:"Directories removed by Clean"`
	Version       string   `toml:"version" env:"RELKIT_VERSION" usage:"Overrides the version derived by GitVersion"`
	GitVersion    string   `toml:"gitversion" env:"RELKIT_GITVERSION" default:"dotnet-gitversion"`
	Dotnet        string   `toml:"dotnet" env:"RELKIT_DOTNET" default:"dotnet"`

	NuGetSource        string `toml:"nuget_source" env:"RELKIT_NUGET_SOURCE" default:"https://api.nuget.org/v3/index.json"`
	NuGetParallelism   int    `toml:"nuget_parallelism" env:"RELKIT_NUGET_PARALLELISM" default:"5" usage:"Maximum number of concurrent pushes"`
	NuGetSkipDuplicate bool   `toml:"nuget_skip_duplicate" env:"RELKIT_NUGET_SKIP_DUPLICATE" default:"false"`

	PublishBranches    []string `toml:"publish_branches" env:"RELKIT_PUBLISH_BRANCHES" default:"main,master" usage:"Branch patterns Publish runs on"`
	BranchesIgnoreCase bool     `toml:"branches_ignore_case" env:"RELKIT_BRANCHES_IGNORE_CASE" default:"true"`

	LogLevelName string `toml:"log_level" env:"RELKIT_LOG_LEVEL" default:"info"`
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object. Flags are
// handled by the CLI so the loader only reads defaults, the config file and the environment.
func Loader(file string) (*Config, *aconfig.Loader) {
	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: true,
		Files:     []string{file},
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads the config for the repository at root. An empty file means root/relkit.toml which
// may be missing. An explicitly passed file has to exist.
func Load(root, file string) (*Config, error) {
	if file == "" {
		file = filepath.Join(root, DefaultFile)
	} else if _, err := os.Stat(file); err != nil {
		return nil, eris.Wrapf(err, "failed to open config file %s", file)
	}

	cfg, loader := Loader(file)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load config")
	}

	return cfg, nil
}

// Resolve fills in the values that depend on the environment and makes all paths absolute.
func (cfg *Config) Resolve(root string, lookup func(string) (string, bool)) {
	if cfg.Configuration == "" {
		if IsServerBuild(lookup) {
			cfg.Configuration = string(Release)
		} else {
			cfg.Configuration = string(Debug)
		}
	}

	cfg.OutputDir = absolute(root, cfg.OutputDir)
	cfg.BuildDir = absolute(root, cfg.BuildDir)
	if cfg.Solution != "" {
		cfg.Solution = absolute(root, cfg.Solution)
	}
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	if cfg.Configuration != "" {
		if _, err := ParseBuildConfiguration(cfg.Configuration); err != nil {
			return err
		}
	}

	if _, ok := logLevels[strings.ToLower(cfg.LogLevelName)]; !ok {
		return eris.Errorf(`Invalid value for log_level: %s`, cfg.LogLevelName)
	}

	if cfg.NuGetParallelism < 1 {
		return eris.Errorf(`Invalid value for nuget_parallelism: %d (must be at least 1)`, cfg.NuGetParallelism)
	}

	if cfg.NuGetSource == "" {
		return eris.New(`nuget_source must not be empty`)
	}

	if len(cfg.PublishBranches) == 0 {
		return eris.New(`publish_branches must contain at least one pattern`)
	}
	for _, pattern := range cfg.PublishBranches {
		if strings.TrimSpace(pattern) == "" {
			return eris.New(`publish_branches contains an empty pattern`)
		}
	}

	if cfg.OutputDir == "" {
		return eris.New(`output_dir must not be empty`)
	}

	return nil
}

// LogLevel converts the LogLevelName field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	level, ok := logLevels[strings.ToLower(cfg.LogLevelName)]
	if !ok {
		return zerolog.InfoLevel
	}

	return level
}

// BuildConfiguration returns the parsed configuration. Call Validate first.
func (cfg *Config) BuildConfiguration() BuildConfiguration {
	value, err := ParseBuildConfiguration(cfg.Configuration)
	if err != nil {
		return Debug
	}

	return value
}

// HasAPIKey reports whether a NuGet API key was configured without exposing it.
func (cfg *Config) HasAPIKey() bool {
	return cfg.NuGetAPIKey != ""
}

func absolute(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(root, path)
}
