package release

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/multierr"

	"github.com/ngld/relkit/pkg/buildsys"
	"github.com/ngld/relkit/pkg/dotnet"
)

func (b *Build) publish(ctx context.Context) error {
	repo, err := b.repository(ctx)
	if err != nil {
		return err
	}

	log := buildsys.Log(ctx)
	log.Info().Msgf("Commit = %s", repo.Commit)
	log.Info().Msgf("Branch = %s", repo.Branch)
	log.Info().Msgf("Tags = [%s]", strings.Join(repo.Tags, ", "))

	log.Info().Msgf("main branch = %t", repo.IsOnMainBranch())
	log.Info().Msgf("main/master branch = %t", repo.IsOnMainOrMasterBranch())
	log.Info().Msgf("release/* branch = %t", repo.IsOnReleaseBranch())
	log.Info().Msgf("hotfix/* branch = %t", repo.IsOnHotfixBranch())

	log.Info().Msgf("Https URL = %s", repo.HTTPSURL())
	log.Info().Msgf("SSH URL = %s", repo.SSHURL())

	packages, err := buildsys.ResolvePatterns(b.Config.OutputDir, []string{"*.nupkg"})
	if err != nil {
		return err
	}

	if len(packages) == 0 {
		return eris.Errorf("no packages found in %s", b.Config.OutputDir)
	}

	apiKey := b.Config.NuGetAPIKey
	if b.Secrets != nil {
		b.Secrets.AddSecret(apiKey)
	}

	bar := b.progressBar(len(packages))
	err = buildsys.ForEach(ctx, packages, buildsys.ForEachOptions{
		Degree:            b.Config.NuGetParallelism,
		CompleteOnFailure: true,
		Done: func(item string, err error) {
			_ = bar.Add(1)

			name := filepath.Base(item)
			if err != nil {
				log.Error().Err(err).Msgf("Failed to push %s", name)
			} else {
				log.Info().Msgf("Pushed %s", name)
			}
		},
	}, func(ctx context.Context, item string) error {
		return b.Toolchain.Push(ctx, dotnet.PushOptions{
			Package:       item,
			Source:        b.Config.NuGetSource,
			APIKey:        apiKey,
			SkipDuplicate: b.Config.NuGetSkipDuplicate,
		})
	})
	_ = bar.Finish()

	if err != nil {
		return eris.Wrapf(err, "%d of %d pushes failed", len(multierr.Errors(err)), len(packages))
	}

	return nil
}

func (b *Build) progressBar(length int) *progressbar.ProgressBar {
	if b.Progress == nil {
		return progressbar.NewOptions(length, progressbar.OptionSetWriter(ioutil.Discard), progressbar.OptionSetVisibility(false))
	}

	return progressbar.NewOptions(length,
		progressbar.OptionSetWriter(b.Progress),
		progressbar.OptionSetDescription("Pushing packages"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
