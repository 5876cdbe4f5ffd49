package release

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ngld/relkit/pkg/buildsys"
	"github.com/ngld/relkit/pkg/dotnet"
)

func (b *Build) pack(ctx context.Context) error {
	sln, err := b.loadSolution()
	if err != nil {
		return err
	}

	projects := sln.Packable()
	if len(projects) == 0 {
		return eris.Errorf("%s doesn't contain any packable projects", sln.Path)
	}

	v, err := b.currentVersion(ctx)
	if err != nil {
		return err
	}

	log := buildsys.Log(ctx)
	for _, project := range projects {
		log.Info().Msgf("Restoring workloads of %s", project.Name)

		err = b.Toolchain.RestoreWorkloads(ctx, project.Path)
		if err != nil {
			return err
		}
	}

	configuration := string(b.Config.BuildConfiguration())
	log.Info().Msgf("Packing %d projects with version %s (%s)", len(projects), v.NuGetVersion, configuration)

	for _, project := range projects {
		err = b.Toolchain.Pack(ctx, dotnet.PackOptions{
			Project:       project.Path,
			Configuration: configuration,
			Version:       v.NuGetVersion,
			OutputDir:     b.Config.OutputDir,
		})
		if err != nil {
			return err
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
