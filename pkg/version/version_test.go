package version

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gitVersionJSON = `{
  "Major": 1,
  "Minor": 4,
  "Patch": 0,
  "SemVer": "1.4.0-beta.3",
  "FullSemVer": "1.4.0-beta.3+12",
  "NuGetVersionV2": "1.4.0-beta0003",
  "NuGetVersion": "1.4.0-beta0003",
  "InformationalVersion": "1.4.0-beta.3+12.Branch.main.Sha.abcdef",
  "Sha": "abcdef"
}`

type fakeRunner struct {
	out  string
	err  error
	args []string
}

func (f *fakeRunner) Output(ctx context.Context, args ...string) (string, error) {
	f.args = args
	return f.out, f.err
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		fails    bool
	}{
		{name: "full output", input: gitVersionJSON, expected: "1.4.0-beta0003"},
		{name: "without NuGetVersionV2", input: `{"NuGetVersion": "2.0.1", "SemVer": "2.0.1"}`, expected: "2.0.1"},
		{name: "semver only", input: `{"SemVer": "3.1.0-rc.1"}`, expected: "3.1.0-rc.1"},
		{name: "leading warnings", input: "WARN: shallow clone\n" + `{"SemVer": "1.0.0"}`, expected: "1.0.0"},
		{name: "empty document", input: `{}`, fails: true},
		{name: "invalid version", input: `{"SemVer": "not a version"}`, fails: true},
		{name: "no json", input: "error", fails: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse([]byte(tt.input))
			if tt.fails {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.NuGetVersion)
			assert.Equal(t, tt.expected, v.String())
		})
	}
}

func TestDerive(t *testing.T) {
	runner := &fakeRunner{out: gitVersionJSON}

	v, err := Derive(context.Background(), runner, "dotnet gitversion")
	require.NoError(t, err)

	assert.Equal(t, "dotnet gitversion /output json", strings.Join(runner.args, " "))
	assert.Equal(t, "1.4.0-beta.3+12", v.FullSemVer)
	assert.Equal(t, "abcdef", v.Sha)
}

func TestDeriveFailure(t *testing.T) {
	runner := &fakeRunner{err: eris.New("not installed")}

	_, err := Derive(context.Background(), runner, "dotnet-gitversion")
	assert.Error(t, err)

	_, err = Derive(context.Background(), runner, "  ")
	assert.Error(t, err)
}

func TestFromOverride(t *testing.T) {
	v, err := FromOverride("v2.3.4-preview.1")
	require.NoError(t, err)
	assert.Equal(t, "2.3.4-preview.1", v.NuGetVersion)

	_, err = FromOverride("latest")
	assert.Error(t, err)
}
