package gitrepo

import (
	"strings"

	"github.com/ryanuber/go-glob"
)

// BranchPolicy decides which branches a release may be published from. Patterns may contain *
// wildcards, i.e. "release/*".
type BranchPolicy struct {
	Patterns   []string
	IgnoreCase bool
}

// DefaultPolicy allows main and master.
func DefaultPolicy() BranchPolicy {
	return BranchPolicy{
		Patterns:   []string{"main", "master"},
		IgnoreCase: true,
	}
}

// Matches reports whether branch matches any of the policy's patterns. Remote and ref prefixes
// are ignored, so origin/main matches main.
func (p BranchPolicy) Matches(branch string) bool {
	branch = NormalizeBranch(branch)
	if branch == "" {
		return false
	}

	if p.IgnoreCase {
		branch = strings.ToLower(branch)
	}

	for _, pattern := range p.Patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if p.IgnoreCase {
			pattern = strings.ToLower(pattern)
		}

		if glob.Glob(pattern, branch) {
			return true
		}
	}

	return false
}

// String lists the patterns for log messages.
func (p BranchPolicy) String() string {
	return strings.Join(p.Patterns, ", ")
}
