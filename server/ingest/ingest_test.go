package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "dog.jpg", SanitizeFilename("dog.jpg"))
	require.Equal(t, "etc_passwd", SanitizeFilename("../../etc passwd"))
	require.Equal(t, "dog.jpg", SanitizeFilename("/tmp/uploads/dog.jpg"))
	require.Equal(t, "dog.jpg", SanitizeFilename("c:\\users\\me\\dog.jpg"))
	require.Equal(t, "hidden", SanitizeFilename("...hidden"))
	// Multi-byte runes become one underscore per byte
	require.Equal(t, "sn__kkong_.png", SanitizeFilename("snökkong?.png"))
}

func TestIngestAllowedExtensions(t *testing.T) {
	ing, err := NewIngestor(logs.NewTestingLog(t), t.TempDir(), 0)
	require.NoError(t, err)

	// Image kinds
	media, err := ingestString(ing, "dog.JPG", KindImage)
	require.NoError(t, err)
	require.Equal(t, "dog.JPG", media.SanitizedName)
	require.FileExists(t, media.StoredPath)

	_, err = ingestString(ing, "clip.mp4", KindImage)
	require.ErrorIs(t, err, ErrUnsupportedExtension)
	require.Contains(t, err.Error(), "png, jpg, jpeg")

	// Video kinds
	_, err = ingestString(ing, "clip.mp4", KindVideo)
	require.NoError(t, err)

	_, err = ingestString(ing, "clip.avi", KindVideo)
	require.ErrorIs(t, err, ErrUnsupportedExtension)
	require.Contains(t, err.Error(), "mp4")
}

func TestIngestNoFile(t *testing.T) {
	ing, err := NewIngestor(logs.NewTestingLog(t), t.TempDir(), 0)
	require.NoError(t, err)

	_, err = ingestString(ing, "", KindImage)
	require.ErrorIs(t, err, ErrNoFile)

	_, err = ingestString(ing, "   ", KindImage)
	require.ErrorIs(t, err, ErrNoFile)
}

func TestIngestLastWriteWins(t *testing.T) {
	ing, err := NewIngestor(logs.NewTestingLog(t), t.TempDir(), 0)
	require.NoError(t, err)

	first, err := ing.Ingest(strings.NewReader("first"), "dog.jpg", KindImage)
	require.NoError(t, err)
	second, err := ing.Ingest(strings.NewReader("second"), "dog.jpg", KindImage)
	require.NoError(t, err)
	require.Equal(t, first.StoredPath, second.StoredPath)

	content, err := os.ReadFile(second.StoredPath)
	require.NoError(t, err)
	require.Equal(t, "second", string(content))
}

func TestIngestTraversalStaysInRoot(t *testing.T) {
	root := t.TempDir()
	ing, err := NewIngestor(logs.NewTestingLog(t), root, 0)
	require.NoError(t, err)

	media, err := ing.Ingest(strings.NewReader("x"), "../../escape.jpg", KindImage)
	require.NoError(t, err)
	require.Equal(t, root, filepath.Dir(media.StoredPath))
}

func ingestString(ing *Ingestor, filename string, kind MediaKind) (*UploadedMedia, error) {
	return ing.Ingest(strings.NewReader("content"), filename, kind)
}
