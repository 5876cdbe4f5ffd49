// Package release declares the Clean, Pack and Publish tasks.
package release

import (
	"context"
	"io"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/ngld/relkit/pkg/buildsys"
	"github.com/ngld/relkit/pkg/config"
	"github.com/ngld/relkit/pkg/dotnet"
	"github.com/ngld/relkit/pkg/gitrepo"
	"github.com/ngld/relkit/pkg/solution"
	"github.com/ngld/relkit/pkg/version"
)

const (
	CleanTask   = "Clean"
	PackTask    = "Pack"
	PublishTask = "Publish"

	// DefaultTarget runs if no target was passed.
	DefaultTarget = PublishTask

	apiKeyParameter = "NuGetApiKey"
)

// SecretStore hides registered values from all log output.
type SecretStore interface {
	AddSecret(value string)
}

// Build holds everything the release tasks need. The repository and version are loaded at most
// once per process.
type Build struct {
	Root      string
	Config    *config.Config
	Toolchain dotnet.Toolchain
	Secrets   SecretStore

	LoadRepository func(ctx context.Context) (*gitrepo.Repository, error)
	LoadVersion    func(ctx context.Context) (*version.Version, error)

	// Progress receives the push progress bar. Nil hides it.
	Progress io.Writer

	repoOnce sync.Once
	repo     *gitrepo.Repository
	repoErr  error

	versionOnce sync.Once
	version     *version.Version
	versionErr  error
}

// Tasks returns the release tasks.
func (b *Build) Tasks() buildsys.TaskList {
	return buildsys.TaskList{
		CleanTask: {
			Short:  CleanTask,
			Desc:   "Recreates the output directory and deletes intermediate build directories",
			Action: b.clean,
		},
		PackTask: {
			Short:  PackTask,
			Desc:   "Restores workloads and packs all packable projects",
			Deps:   []string{CleanTask},
			Action: b.pack,
		},
		PublishTask: {
			Short: PublishTask,
			Desc:  "Pushes the packages to the NuGet source",
			Deps:  []string{PackTask},
			Requires: []buildsys.Requirement{
				{Name: apiKeyParameter, Present: b.Config.HasAPIKey},
			},
			Conditions: []buildsys.Condition{
				{Name: "IsOnPublishBranch", Check: b.isOnPublishBranch},
			},
			Action: b.publish,
		},
	}
}

// BranchPolicy returns the configured publish policy.
func (b *Build) BranchPolicy() gitrepo.BranchPolicy {
	return gitrepo.BranchPolicy{
		Patterns:   b.Config.PublishBranches,
		IgnoreCase: b.Config.BranchesIgnoreCase,
	}
}

func (b *Build) repository(ctx context.Context) (*gitrepo.Repository, error) {
	b.repoOnce.Do(func() {
		if b.LoadRepository == nil {
			b.repoErr = eris.New("no repository loader configured")
			return
		}

		b.repo, b.repoErr = b.LoadRepository(ctx)
	})

	return b.repo, b.repoErr
}

func (b *Build) currentVersion(ctx context.Context) (*version.Version, error) {
	b.versionOnce.Do(func() {
		if b.Config.Version != "" {
			b.version, b.versionErr = version.FromOverride(b.Config.Version)
			return
		}

		if b.LoadVersion == nil {
			b.versionErr = eris.New("no version loader configured")
			return
		}

		b.version, b.versionErr = b.LoadVersion(ctx)
	})

	return b.version, b.versionErr
}

func (b *Build) loadSolution() (*solution.Solution, error) {
	path := b.Config.Solution
	if path == "" {
		var err error
		path, err = solution.Find(b.Root)
		if err != nil {
			return nil, err
		}
	}

	return solution.Load(path)
}

func (b *Build) isOnPublishBranch(ctx context.Context) (bool, error) {
	repo, err := b.repository(ctx)
	if err != nil {
		return false, err
	}

	policy := b.BranchPolicy()
	ok := policy.Matches(repo.Branch)
	if !ok {
		buildsys.Log(ctx).Info().Msgf("Branch %s doesn't match %s", repo.Branch, policy)
	}

	return ok, nil
}
