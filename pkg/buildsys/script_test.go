package buildsys

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchAt(t *testing.T, path string, mtime time.Time) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestAnyMissing(t *testing.T) {
	base := t.TempDir()
	touchAt(t, filepath.Join(base, "site", "index.html"), time.Now())

	tests := []struct {
		name     string
		patterns []string
		missing  bool
	}{
		{"literal present", []string{"site/index.html"}, false},
		{"glob present", []string{"site/*.html"}, false},
		{"literal missing", []string{"site/index.html", "site/app.js"}, true},
		{"glob without matches", []string{"site/*.css"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			missing, err := anyMissing(base, tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.missing, missing)
		})
	}
}

func TestOutdated(t *testing.T) {
	ctx, _ := testContext()
	base := t.TempDir()
	now := time.Now()

	task := &Task{Short: "gen", Base: base, Inputs: []string{"src/*.txt"}, Outputs: []string{"out/*.txt"}}

	touchAt(t, filepath.Join(base, "src", "a.txt"), now.Add(-time.Hour))
	stale, err := outdated(ctx, task)
	require.NoError(t, err)
	assert.True(t, stale, "no outputs yet")

	touchAt(t, filepath.Join(base, "out", "a.txt"), now)
	stale, err = outdated(ctx, task)
	require.NoError(t, err)
	assert.False(t, stale)

	touchAt(t, filepath.Join(base, "src", "b.txt"), now.Add(time.Minute))
	stale, err = outdated(ctx, task)
	require.NoError(t, err)
	assert.True(t, stale, "newer input")
}

func TestMtimeRange(t *testing.T) {
	base := t.TempDir()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)
	touchAt(t, filepath.Join(base, "a.txt"), recent)
	touchAt(t, filepath.Join(base, "nested", "b.txt"), old)

	oldest, newest, err := mtimeRange(base, []string{"**/*.txt", "*.txt"})
	require.NoError(t, err)
	assert.True(t, oldest.Equal(old))
	assert.True(t, newest.Equal(recent))

	oldest, newest, err = mtimeRange(base, []string{"*.none"})
	require.NoError(t, err)
	assert.True(t, oldest.IsZero())
	assert.True(t, newest.IsZero())
}
