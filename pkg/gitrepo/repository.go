// Package gitrepo takes a snapshot of the git repository a build runs in.
package gitrepo

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Runner executes a command and returns its stdout.
type Runner interface {
	Output(ctx context.Context, args ...string) (string, error)
}

// branchVariables hold the branch on CI servers that check out a detached HEAD.
var branchVariables = []string{
	"BUILD_SOURCEBRANCH",
	"GITHUB_REF_NAME",
	"CI_COMMIT_REF_NAME",
	"BRANCH_NAME",
}

// Repository describes the current state of a checkout.
type Repository struct {
	Branch    string
	Commit    string
	Tags      []string
	RemoteURL string

	// Endpoint is the remote's host, Identifier the path without .git (i.e. owner/name)
	Endpoint   string
	Identifier string
}

// Open inspects the repository in the runner's working directory. Branch names provided by
// CI servers take precedence over the checked out branch.
func Open(ctx context.Context, runner Runner, lookup func(string) (string, bool)) (*Repository, error) {
	repo := &Repository{}

	commit, err := runner.Output(ctx, "git", "rev-parse", "HEAD")
	if err != nil {
		return nil, eris.Wrap(err, "failed to determine the current commit")
	}
	repo.Commit = strings.TrimSpace(commit)

	for _, name := range branchVariables {
		if value, ok := lookup(name); ok && strings.TrimSpace(value) != "" {
			repo.Branch = NormalizeBranch(value)
			break
		}
	}

	if repo.Branch == "" {
		branch, err := runner.Output(ctx, "git", "rev-parse", "--abbrev-ref", "HEAD")
		if err != nil {
			return nil, eris.Wrap(err, "failed to determine the current branch")
		}

		branch = strings.TrimSpace(branch)
		if branch != "HEAD" {
			repo.Branch = NormalizeBranch(branch)
		}
	}

	tags, err := runner.Output(ctx, "git", "tag", "--points-at", "HEAD")
	if err != nil {
		return nil, eris.Wrap(err, "failed to list tags")
	}
	repo.Tags = splitLines(tags)

	// a repository without remote is fine
	remote, err := runner.Output(ctx, "git", "config", "--get", "remote.origin.url")
	if err == nil {
		repo.RemoteURL = strings.TrimSpace(remote)
		repo.Endpoint, repo.Identifier = ParseRemote(repo.RemoteURL)
	}

	return repo, nil
}

// NormalizeBranch strips ref and remote prefixes from a branch name.
func NormalizeBranch(branch string) string {
	branch = strings.TrimSpace(branch)
	for _, prefix := range []string{"refs/heads/", "refs/remotes/", "remotes/", "origin/"} {
		branch = strings.TrimPrefix(branch, prefix)
	}

	return branch
}

// ParseRemote splits a remote URL into host and repository path. Supported are URLs with a scheme
// (https, ssh, git) and the scp-like syntax user@host:path.
func ParseRemote(remote string) (endpoint, identifier string) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return "", ""
	}

	if strings.Contains(remote, "://") {
		parsed, err := url.Parse(remote)
		if err != nil {
			return "", ""
		}

		endpoint = parsed.Hostname()
		identifier = parsed.Path
	} else {
		hostPart := remote
		pathPart := ""
		if idx := strings.Index(remote, ":"); idx > -1 {
			hostPart = remote[:idx]
			pathPart = remote[idx+1:]
		}

		if idx := strings.LastIndex(hostPart, "@"); idx > -1 {
			hostPart = hostPart[idx+1:]
		}

		endpoint = hostPart
		identifier = pathPart
	}

	identifier = strings.Trim(identifier, "/")
	identifier = strings.TrimSuffix(identifier, ".git")
	return endpoint, identifier
}

// HTTPSURL returns the remote as https URL.
func (r *Repository) HTTPSURL() string {
	if r.Endpoint == "" {
		return ""
	}

	return "https://" + r.Endpoint + "/" + r.Identifier
}

// SSHURL returns the remote in scp-like syntax.
func (r *Repository) SSHURL() string {
	if r.Endpoint == "" {
		return ""
	}

	return "git@" + r.Endpoint + ":" + r.Identifier + ".git"
}

func (r *Repository) IsOnMainBranch() bool {
	return strings.EqualFold(r.Branch, "main")
}

func (r *Repository) IsOnMasterBranch() bool {
	return strings.EqualFold(r.Branch, "master")
}

func (r *Repository) IsOnMainOrMasterBranch() bool {
	return r.IsOnMainBranch() || r.IsOnMasterBranch()
}

func (r *Repository) IsOnReleaseBranch() bool {
	return hasPrefixFold(r.Branch, "release/")
}

func (r *Repository) IsOnHotfixBranch() bool {
	return hasPrefixFold(r.Branch, "hotfix/")
}

func hasPrefixFold(value, prefix string) bool {
	return len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix)
}

func splitLines(text string) []string {
	result := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}
