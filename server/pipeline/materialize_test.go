package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatestRunDir(t *testing.T) {
	root := t.TempDir()

	older := filepath.Join(root, "run-a")
	newer := filepath.Join(root, "run-b")
	require.NoError(t, os.MkdirAll(older, 0755))
	require.NoError(t, os.MkdirAll(newer, 0755))

	tOld := time.Now().Add(-time.Hour)
	tNew := time.Now()
	require.NoError(t, os.Chtimes(older, tOld, tOld))
	require.NoError(t, os.Chtimes(newer, tNew, tNew))

	latest, err := LatestRunDir(root)
	require.NoError(t, err)
	require.Equal(t, newer, latest)
}

func TestLatestRunDirTieBreak(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "run-a")
	b := filepath.Join(root, "run-b")
	require.NoError(t, os.MkdirAll(a, 0755))
	require.NoError(t, os.MkdirAll(b, 0755))

	same := time.Now().Truncate(time.Second)
	require.NoError(t, os.Chtimes(a, same, same))
	require.NoError(t, os.Chtimes(b, same, same))

	// Equal mod times resolve lexicographically (greatest path wins), so
	// repeated scans always agree.
	for i := 0; i < 5; i++ {
		latest, err := LatestRunDir(root)
		require.NoError(t, err)
		require.Equal(t, b, latest)
	}
}

func TestLatestRunDirEmpty(t *testing.T) {
	_, err := LatestRunDir(t.TempDir())
	require.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestSummarize(t *testing.T) {
	// nil and empty both produce the placeholder, never an empty list
	require.Equal(t, []string{PlaceholderNoDetections}, Summarize(nil, nil))
}
