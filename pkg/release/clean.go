package release

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ngld/relkit/pkg/buildsys"
	"github.com/ngld/relkit/pkg/fsutil"
)

func (b *Build) clean(ctx context.Context) error {
	err := fsutil.CreateOrClean(b.Config.OutputDir)
	if err != nil {
		return err
	}

	dirs, err := b.cleanTargets()
	if err != nil {
		return err
	}

	if len(dirs) == 0 {
		buildsys.Log(ctx).Info().Msg("Nothing to delete")
		return nil
	}

	relDirs := make([]string, len(dirs))
	for idx, dir := range dirs {
		rel, err := filepath.Rel(b.Root, dir)
		if err != nil {
			rel = dir
		}
		relDirs[idx] = filepath.ToSlash(rel)
	}

	buildsys.Log(ctx).Info().Strs("dirs", relDirs).Msgf("Deleting %d directories", len(dirs))
	return fsutil.Remove(dirs, true, true)
}

// cleanTargets lists the directories matching the clean patterns outside of the build and
// output directories. Directories nested in another target are omitted.
func (b *Build) cleanTargets() ([]string, error) {
	matches, err := buildsys.ResolvePatterns(b.Root, b.Config.CleanPatterns)
	if err != nil {
		return nil, eris.Wrap(err, "failed to resolve clean patterns")
	}

	result := []string{}
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			if eris.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, eris.Wrapf(err, "failed to check %s", match)
		}

		if !info.IsDir() {
			continue
		}

		if b.Config.BuildDir != "" && fsutil.IsWithin(match, b.Config.BuildDir) {
			continue
		}

		if fsutil.IsWithin(match, b.Config.OutputDir) {
			continue
		}

		nested := false
		for _, parent := range result {
			if fsutil.IsWithin(match, parent) {
				nested = true
				break
			}
		}

		if !nested {
			result = append(result, match)
		}
	}

	return result, nil
}
