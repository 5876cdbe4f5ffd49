// Package solution reads Visual Studio solution files and the SDK-style project files they list.
package solution

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// solutionFolderType marks virtual folders inside a solution.
const solutionFolderType = "2150E333-8FDC-42A3-9474-1A3956D46DE8"

var projectLine = regexp.MustCompile(`^Project\("\{([0-9A-Fa-f-]+)\}"\)\s*=\s*"([^"]*)",\s*"([^"]*)",\s*"\{([0-9A-Fa-f-]+)\}"`)

// Solution lists the projects of a .sln file.
type Solution struct {
	Path     string
	Dir      string
	Projects []*Project
}

// Find returns the only solution file in root.
func Find(root string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*.sln"))
	if err != nil {
		return "", eris.Wrap(err, "failed to look for solution files")
	}

	switch len(matches) {
	case 0:
		return "", eris.Errorf("no solution file found in %s", root)
	case 1:
		return matches[0], nil
	}

	sort.Strings(matches)
	return "", eris.Errorf("found multiple solution files in %s (%s), please configure one", root, strings.Join(matches, ", "))
}

// Load parses the solution at path and every project it references.
func Load(path string) (*Solution, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open solution %s", path)
	}
	defer f.Close()

	sln := &Solution{
		Path: path,
		Dir:  filepath.Dir(path),
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		match := projectLine.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if match == nil {
			continue
		}

		if strings.EqualFold(match[1], solutionFolderType) {
			continue
		}

		relPath := filepath.FromSlash(strings.ReplaceAll(match[3], `\`, "/"))
		project, err := LoadProject(match[2], filepath.Join(sln.Dir, relPath))
		if err != nil {
			return nil, eris.Wrapf(err, "failed to load project %s", match[2])
		}

		sln.Projects = append(sln.Projects, project)
	}

	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "failed to read solution %s", path)
	}

	return sln, nil
}

// Packable returns all projects that produce a package.
func (s *Solution) Packable() []*Project {
	result := make([]*Project, 0, len(s.Projects))
	for _, project := range s.Projects {
		if project.Packable() {
			result = append(result, project)
		}
	}

	return result
}

// Project returns the project with the given name.
func (s *Solution) Project(name string) (*Project, bool) {
	for _, project := range s.Projects {
		if project.Name == name {
			return project, true
		}
	}

	return nil, false
}
