package buildsys

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// ResolvePatterns expands shell glob patterns (including **) relative to base. Patterns without
// matches are dropped. The result is sorted and free of duplicates.
func ResolvePatterns(base string, patterns []string) ([]string, error) {
	cfg := &expand.Config{
		Env:      expand.ListEnviron("PWD=" + base),
		GlobStar: true,
		ReadDir: func(dir string) ([]os.FileInfo, error) {
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(base, dir)
			}
			return ioutil.ReadDir(dir)
		},
	}

	unique := make(map[string]struct{})
	for _, pattern := range patterns {
		// a single literal word is never split, even if the pattern contains spaces
		word := &syntax.Word{Parts: []syntax.WordPart{
			&syntax.Lit{Value: filepath.ToSlash(filepath.Clean(pattern))},
		}}

		fields, err := expand.Fields(cfg, word)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", pattern)
		}

		for _, field := range fields {
			path := filepath.FromSlash(field)
			if !filepath.IsAbs(path) {
				path = filepath.Join(base, path)
			}

			// unmatched globs come back unchanged
			if strings.ContainsAny(field, "*?[") {
				if _, err := os.Lstat(path); err != nil {
					continue
				}
			}

			unique[path] = struct{}{}
		}
	}

	result := make([]string, 0, len(unique))
	for path := range unique {
		result = append(result, path)
	}
	sort.Strings(result)

	return result, nil
}

// mtimeRange returns the oldest and newest modification time of the files matching patterns.
// Both are zero if nothing matched.
func mtimeRange(base string, patterns []string) (oldest, newest time.Time, err error) {
	paths, err := ResolvePatterns(base, patterns)
	if err != nil {
		return
	}

	for _, path := range paths {
		info, statErr := os.Stat(path)
		if os.IsNotExist(statErr) {
			continue
		}
		if statErr != nil {
			err = eris.Wrapf(statErr, "failed to check %s", path)
			return
		}

		mtime := info.ModTime()
		if oldest.IsZero() || mtime.Before(oldest) {
			oldest = mtime
		}
		if mtime.After(newest) {
			newest = mtime
		}
	}

	return
}
