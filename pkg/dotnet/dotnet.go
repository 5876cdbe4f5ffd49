// Package dotnet wraps the dotnet CLI commands used to pack and publish packages.
package dotnet

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ngld/relkit/pkg/buildsys"
)

// PackOptions are passed to dotnet pack.
type PackOptions struct {
	Project       string
	Configuration string
	Version       string
	OutputDir     string
}

// PushOptions are passed to dotnet nuget push.
type PushOptions struct {
	Package       string
	Source        string
	APIKey        string
	SkipDuplicate bool
}

// Toolchain runs the external tools needed by the release tasks.
type Toolchain interface {
	RestoreWorkloads(ctx context.Context, project string) error
	Pack(ctx context.Context, opts PackOptions) error
	Push(ctx context.Context, opts PushOptions) error
}

// CLI implements Toolchain by calling the dotnet executable through a shell.
type CLI struct {
	Shell      *buildsys.Shell
	Executable string
}

var _ Toolchain = (*CLI)(nil)

// NewCLI returns a toolchain calling executable (usually "dotnet").
func NewCLI(shell *buildsys.Shell, executable string) *CLI {
	if executable == "" {
		executable = "dotnet"
	}

	return &CLI{Shell: shell, Executable: executable}
}

func (c *CLI) RestoreWorkloads(ctx context.Context, project string) error {
	err := c.Shell.Run(ctx, c.Executable, "workload", "restore", "--project", project)
	if err != nil {
		return eris.Wrapf(err, "failed to restore workloads for %s", project)
	}

	return nil
}

func (c *CLI) Pack(ctx context.Context, opts PackOptions) error {
	err := c.Shell.Run(ctx, PackArgs(c.Executable, opts)...)
	if err != nil {
		return eris.Wrapf(err, "failed to pack %s", opts.Project)
	}

	return nil
}

func (c *CLI) Push(ctx context.Context, opts PushOptions) error {
	c.Shell.AddSecret(opts.APIKey)

	err := c.Shell.Run(ctx, PushArgs(c.Executable, opts)...)
	if err != nil {
		return eris.Wrapf(err, "failed to push %s", opts.Package)
	}

	return nil
}

// PackArgs builds the command line for dotnet pack.
func PackArgs(executable string, opts PackOptions) []string {
	args := []string{executable, "pack", opts.Project}
	if opts.Configuration != "" {
		args = append(args, "--configuration", opts.Configuration)
	}
	if opts.OutputDir != "" {
		args = append(args, "--output", opts.OutputDir)
	}
	if opts.Version != "" {
		args = append(args, "/property:Version="+opts.Version)
	}

	return args
}

// PushArgs builds the command line for dotnet nuget push.
func PushArgs(executable string, opts PushOptions) []string {
	args := []string{executable, "nuget", "push", opts.Package}
	if opts.Source != "" {
		args = append(args, "--source", opts.Source)
	}
	if opts.APIKey != "" {
		args = append(args, "--api-key", opts.APIKey)
	}
	if opts.SkipDuplicate {
		args = append(args, "--skip-duplicate")
	}

	return args
}
