package rando

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStrongRandomAlphaNumChars(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := StrongRandomAlphaNumChars(30)
		require.Len(t, s, 30)
		for _, c := range s {
			require.True(t, strings.ContainsRune(alphaNum, c))
		}
		require.False(t, seen[s])
		seen[s] = true
	}
}

func TestTempFilename(t *testing.T) {
	a := TempFilename(".mp4")
	b := TempFilename(".mp4")
	require.NotEqual(t, a, b)
	require.Equal(t, ".mp4", filepath.Ext(a))
}
