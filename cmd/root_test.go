package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngld/relkit/pkg/buildsys"
)

func TestSplitArgs(t *testing.T) {
	targets, options := splitArgs([]string{"Pack", "version=1.2", "docs", "empty="})

	assert.Equal(t, []string{"Pack", "docs"}, targets)
	assert.Equal(t, map[string]string{"version": "1.2", "empty": ""}, options)
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "src", "Lib")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := findRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, found)
}

func TestPrintTasks(t *testing.T) {
	graph, err := buildsys.NewGraph(buildsys.TaskList{
		"Clean":   {Short: "Clean", Desc: "Deletes outputs"},
		"Publish": {Short: "Publish", Desc: "Pushes packages", Deps: []string{"Clean"}},
		"auto#1":  {Short: "auto#1", Hidden: true},
	})
	require.NoError(t, err)

	out := bytes.Buffer{}
	printTasks(&out, graph, nil)

	assert.Contains(t, out.String(), "Clean:")
	assert.Contains(t, out.String(), "Pushes packages (default)")
	assert.NotContains(t, out.String(), "auto#1")
	assert.NotContains(t, out.String(), "Options:")
}

var ansiCodes = regexp.MustCompile("\x1b\\[[0-9;]*m")

func TestConsoleWriter(t *testing.T) {
	out := bytes.Buffer{}
	logger := zerolog.New(NewConsoleWriter(&out))

	logger.Info().Str("task", "Pack").Msg("Restoring [workloads]")
	logger.Info().Str("task", "Pack").Bool("command", true).Msg("dotnet pack")
	logger.Error().Err(eris.New("boom")).Msg("Build failed")

	lines := strings.Split(ansiCodes.ReplaceAllString(out.String(), ""), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "Pack: Restoring [workloads]", lines[0])
	assert.Equal(t, "Pack: $ dotnet pack", lines[1])
	assert.Equal(t, "Error: Build failed", lines[2])
	assert.Contains(t, out.String(), "boom")
}

func TestConsoleWriterRejectsInvalidEvents(t *testing.T) {
	_, err := NewConsoleWriter(&bytes.Buffer{}).Write([]byte("not json"))
	assert.Error(t, err)
}
