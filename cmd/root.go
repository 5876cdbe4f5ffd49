// Package cmd implements the relkit command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ngld/relkit/pkg/buildsys"
	"github.com/ngld/relkit/pkg/config"
	"github.com/ngld/relkit/pkg/dotnet"
	"github.com/ngld/relkit/pkg/gitrepo"
	"github.com/ngld/relkit/pkg/release"
	"github.com/ngld/relkit/pkg/version"
)

const scriptName = "tasks.star"

var rootCmd = &cobra.Command{
	Use:   "relkit [targets...] [name=value...]",
	Short: "Cleans, packs and publishes the NuGet packages of a repository",
	Long: `relkit runs the Clean, Pack and Publish tasks (and any task declared in tasks.star) in
dependency order. Publish is the default target. It only runs on the configured branches and
requires the NuGetApiKey parameter.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runRoot,
}

type rootFlags struct {
	targets       []string
	configuration string
	root          string
	configFile    string
	dryRun        bool
	list          bool
	verbose       bool
}

var flags rootFlags

func init() {
	f := rootCmd.Flags()
	f.StringSliceVarP(&flags.targets, "target", "t", nil, "targets to run (default Publish)")
	f.StringVarP(&flags.configuration, "configuration", "c", "", "Debug or Release (default depends on CI detection)")
	f.StringVar(&flags.root, "root", "", "repository root (default: nearest directory containing .git)")
	f.StringVar(&flags.configFile, "config", "", "config file (default relkit.toml in the root)")
	f.BoolVarP(&flags.dryRun, "dry", "n", false, "dry run; only print the plan, don't execute anything")
	f.BoolVarP(&flags.list, "list", "l", false, "list available tasks")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
}

// splitArgs separates targets from name=value options.
func splitArgs(args []string) ([]string, map[string]string) {
	targets := make([]string, 0, len(args))
	options := make(map[string]string)

	for _, part := range args {
		pos := strings.Index(part, "=")
		if pos > -1 {
			options[part[:pos]] = part[pos+1:]
		} else {
			targets = append(targets, part)
		}
	}

	return targets, options
}

// findRoot returns the nearest directory containing .git, starting at dir.
func findRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	path := dir
	for {
		_, err := os.Stat(filepath.Join(path, ".git"))
		if err == nil {
			return path, nil
		}
		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "Failed to check %s", path)
		}

		parent := filepath.Dir(path)
		if parent == path {
			// not a git checkout, use the starting directory
			return dir, nil
		}

		path = parent
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	targets, options := splitArgs(args)
	targets = append(targets, flags.targets...)

	writer := NewConsoleWriter(os.Stderr)
	logger := zerolog.New(writer).Level(zerolog.InfoLevel)
	if flags.verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = buildsys.WithLogger(ctx, &logger)

	err := run(ctx, &logger, targets, options)
	if err != nil {
		// already reported through the logger
		cmd.SilenceErrors = true
		logger.Error().Err(err).Msg("Build failed")
	}

	return err
}

func run(ctx context.Context, logger *zerolog.Logger, targets []string, options map[string]string) error {
	root := flags.root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return eris.Wrap(err, "Failed to retrieve the current working directory")
		}

		root, err = findRoot(wd)
		if err != nil {
			return err
		}
	} else {
		var err error
		root, err = filepath.Abs(root)
		if err != nil {
			return err
		}
	}

	cfg, err := config.Load(root, flags.configFile)
	if err != nil {
		return err
	}

	if flags.configuration != "" {
		cfg.Configuration = flags.configuration
	}
	if flags.verbose {
		cfg.LogLevelName = "debug"
	}

	cfg.Resolve(root, os.LookupEnv)
	if err = cfg.Validate(); err != nil {
		return eris.Wrap(err, "Failed to parse config")
	}

	*logger = logger.Level(cfg.LogLevel())
	logger.Debug().
		Str("root", root).
		Str("configuration", cfg.Configuration).
		Bool("server_build", config.IsServerBuild(os.LookupEnv)).
		Msg("Loaded config")

	shell := buildsys.NewShell(root)
	shell.AddSecret(cfg.NuGetAPIKey)

	build := &release.Build{
		Root:      root,
		Config:    cfg,
		Toolchain: dotnet.NewCLI(shell, cfg.Dotnet),
		Secrets:   shell,
		LoadRepository: func(ctx context.Context) (*gitrepo.Repository, error) {
			return gitrepo.Open(ctx, shell, os.LookupEnv)
		},
		LoadVersion: func(ctx context.Context) (*version.Version, error) {
			return version.Derive(ctx, shell, cfg.GitVersion)
		},
	}
	if !config.IsServerBuild(os.LookupEnv) {
		build.Progress = os.Stderr
	}

	tasks := build.Tasks()
	scriptOptions, err := loadScriptTasks(ctx, root, options, tasks, shell)
	if err != nil {
		return err
	}

	for name := range options {
		if _, ok := scriptOptions[name]; !ok {
			logger.Warn().Msgf("Option %s is not declared by any task script", name)
		}
	}

	graph, err := buildsys.NewGraph(tasks)
	if err != nil {
		return err
	}

	if flags.list {
		printTasks(os.Stdout, graph, scriptOptions)
		return nil
	}

	if len(targets) == 0 {
		targets = []string{release.DefaultTarget}
	}

	_, err = buildsys.NewRunner(graph, buildsys.Options{DryRun: flags.dryRun}).Run(ctx, targets...)
	return err
}

// loadScriptTasks adds the tasks declared in root/tasks.star (if present) to tasks.
func loadScriptTasks(ctx context.Context, root string, options map[string]string, tasks buildsys.TaskList, shell *buildsys.Shell) (map[string]buildsys.ScriptOption, error) {
	scriptPath := filepath.Join(root, scriptName)
	_, err := os.Stat(scriptPath)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return map[string]buildsys.ScriptOption{}, nil
		}
		return nil, eris.Wrapf(err, "Failed to check %s", scriptPath)
	}

	scriptTasks, scriptOptions, err := buildsys.LoadScript(ctx, scriptPath, root, options, tasks, shell)
	if err != nil {
		return nil, eris.Wrap(err, "Failed to parse tasks")
	}

	for name, task := range scriptTasks {
		tasks[name] = task
	}

	return scriptOptions, nil
}

func printTasks(out io.Writer, graph *buildsys.Graph, options map[string]buildsys.ScriptOption) {
	fmt.Fprintln(out, "Available tasks:")

	visible := graph.Visible()
	maxNameLen := 0
	for _, task := range visible {
		if len(task.Short) > maxNameLen {
			maxNameLen = len(task.Short)
		}
	}

	lineFmt := fmt.Sprintf(" * %%-%ds %%s\n", maxNameLen+3)
	for _, task := range visible {
		desc := task.Desc
		if task.Short == release.DefaultTarget {
			desc += " (default)"
		}
		fmt.Fprintf(out, lineFmt, task.Short+":", desc)
	}

	if len(options) == 0 {
		return
	}

	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(out, "\nOptions:")
	for _, name := range names {
		opt := options[name]
		fmt.Fprintf(out, " * %s=%s  %s\n", name, opt.Default(), opt.Help)
	}
}

// Execute runs the CLI and exits with status 1 on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
