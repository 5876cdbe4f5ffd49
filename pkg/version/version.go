// Package version derives the package version from the git history with GitVersion.
package version

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rotisserie/eris"
)

// Runner executes a command and returns its stdout.
type Runner interface {
	Output(ctx context.Context, args ...string) (string, error)
}

// Version holds the variables GitVersion computed for the current commit.
type Version struct {
	SemVer               string
	FullSemVer           string
	NuGetVersion         string
	InformationalVersion string
	Sha                  string
}

type gitVersionOutput struct {
	SemVer               string `json:"SemVer"`
	FullSemVer           string `json:"FullSemVer"`
	NuGetVersion         string `json:"NuGetVersion"`
	NuGetVersionV2       string `json:"NuGetVersionV2"`
	InformationalVersion string `json:"InformationalVersion"`
	Sha                  string `json:"Sha"`
}

// Derive runs GitVersion and parses its output. tool may contain arguments, i.e. "dotnet gitversion".
func Derive(ctx context.Context, runner Runner, tool string) (*Version, error) {
	args := strings.Fields(tool)
	if len(args) == 0 {
		return nil, eris.New("no GitVersion command configured")
	}

	args = append(args, "/output", "json")
	out, err := runner.Output(ctx, args...)
	if err != nil {
		return nil, eris.Wrap(err, "failed to run GitVersion")
	}

	return Parse([]byte(out))
}

// Parse reads GitVersion's JSON output. Newer releases dropped NuGetVersionV2 which is preferred
// when present.
func Parse(data []byte) (*Version, error) {
	// GitVersion may print warnings before the document
	if idx := strings.IndexByte(string(data), '{'); idx > 0 {
		data = data[idx:]
	}

	var out gitVersionOutput
	err := json.Unmarshal(data, &out)
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse GitVersion output")
	}

	v := &Version{
		SemVer:               out.SemVer,
		FullSemVer:           out.FullSemVer,
		NuGetVersion:         out.NuGetVersionV2,
		InformationalVersion: out.InformationalVersion,
		Sha:                  out.Sha,
	}

	if v.NuGetVersion == "" {
		v.NuGetVersion = out.NuGetVersion
	}
	if v.NuGetVersion == "" {
		v.NuGetVersion = out.SemVer
	}

	if v.NuGetVersion == "" {
		return nil, eris.New("GitVersion didn't return a version")
	}

	if _, err := semver.NewVersion(v.NuGetVersion); err != nil {
		return nil, eris.Wrapf(err, "GitVersion returned the invalid version %s", v.NuGetVersion)
	}

	return v, nil
}

// FromOverride builds a version from a user provided string.
func FromOverride(value string) (*Version, error) {
	parsed, err := semver.NewVersion(strings.TrimSpace(value))
	if err != nil {
		return nil, eris.Wrapf(err, "invalid version %s", value)
	}

	normalized := parsed.String()
	return &Version{
		SemVer:               normalized,
		FullSemVer:           normalized,
		NuGetVersion:         normalized,
		InformationalVersion: normalized,
	}, nil
}

func (v *Version) String() string {
	return v.NuGetVersion
}
