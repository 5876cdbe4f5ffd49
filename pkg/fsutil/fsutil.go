// Package fsutil contains cross-platform implementations of the few file system operations the
// build needs: rm, mv, mkdir and recreating output directories.
package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
)

const dirMode = 0o770

// expand resolves glob patterns on Windows since cmd.exe leaves them to the called program.
// Patterns without matches are dropped when allowEmpty is set.
func expand(patterns []string, allowEmpty bool) ([]string, error) {
	if runtime.GOOS != "windows" {
		return patterns, nil
	}

	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[") {
			result = append(result, pattern)
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid pattern %s", pattern)
		}
		if len(matches) == 0 && !allowEmpty {
			return nil, eris.Errorf("%s: no matches", pattern)
		}

		result = append(result, matches...)
	}

	return result, nil
}

// Remove deletes the given items. Directories are only removed if recursive is set.
// With force, missing items are ignored. Nothing is deleted if any item fails the checks.
func Remove(items []string, recursive, force bool) error {
	items, err := expand(items, force)
	if err != nil {
		return err
	}

	targets := items[:0:0]
	for _, item := range items {
		info, err := os.Lstat(item)
		switch {
		case os.IsNotExist(err) && force:
			continue
		case err != nil:
			return eris.Wrapf(err, "rm: can't remove %s", item)
		case info.IsDir() && !recursive:
			return eris.Errorf("rm: %s is a directory", item)
		}

		targets = append(targets, item)
	}

	for _, item := range targets {
		if err := os.RemoveAll(item); err != nil {
			return eris.Wrapf(err, "rm: failed to delete %s", item)
		}
	}

	return nil
}

// Move renames items. With several items dest has to be an existing directory; a single item is
// moved into dest if it's a directory and renamed to dest otherwise.
func Move(items []string, dest string) error {
	if len(items) == 0 {
		return eris.New("mv: missing source")
	}

	items, err := expand(items, false)
	if err != nil {
		return err
	}

	intoDir, err := isDir(filepath.Clean(dest))
	if err != nil {
		return err
	}
	if len(items) > 1 && !intoDir {
		return eris.Errorf("mv: target %s is not a directory", dest)
	}

	for _, item := range items {
		target := dest
		if intoDir {
			target = filepath.Join(dest, filepath.Base(item))
		}

		if err = os.Rename(item, target); err != nil {
			return eris.Wrapf(err, "mv: failed to move %s to %s", item, target)
		}
	}

	return nil
}

func isDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if _, err = os.Stat(filepath.Dir(path)); err != nil {
			return false, eris.Wrapf(err, "mv: missing parent directory for %s", path)
		}
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "mv: can't access %s", path)
	}

	return info.IsDir(), nil
}

// Mkdir creates the given directories.
func Mkdir(items []string, parents bool) error {
	create := os.Mkdir
	if parents {
		create = os.MkdirAll
	}

	for _, item := range items {
		if err := create(item, dirMode); err != nil {
			return eris.Wrapf(err, "mkdir: failed to create %s", item)
		}
	}

	return nil
}

// CreateOrClean makes sure dir exists and is empty. The directory itself is kept.
func CreateOrClean(dir string) error {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return eris.Wrapf(err, "failed to create %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return eris.Wrapf(err, "failed to list %s", dir)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err = os.RemoveAll(path); err != nil {
			return eris.Wrapf(err, "failed to delete %s", path)
		}
	}

	return nil
}

// IsWithin reports whether path is dir itself or located below it.
func IsWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
