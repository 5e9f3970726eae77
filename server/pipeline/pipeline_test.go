package pipeline

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/disintegration/imaging"
	"github.com/sightd/sightd/server/ingest"
	"github.com/sightd/sightd/server/nn"
	"github.com/stretchr/testify/require"
)

func writeTestJPEG(t *testing.T, path string) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 128, 255})
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

func newTestPipeline(t *testing.T, detector nn.ObjectDetector) (*Pipeline, string, string) {
	runsRoot := t.TempDir()
	publicRoot := t.TempDir()
	filter := nn.NewRelevanceFilter([]string{"person"}, 0.25)
	p, err := New(logs.NewTestingLog(t), detector, filter, runsRoot, publicRoot)
	require.NoError(t, err)
	return p, runsRoot, publicRoot
}

func ingestTestImage(t *testing.T, name string) *ingest.UploadedMedia {
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	writeTestJPEG(t, path)
	return &ingest.UploadedMedia{
		OriginalName:  name,
		SanitizedName: name,
		StoredPath:    path,
		Kind:          ingest.KindImage,
	}
}

func TestRunImage(t *testing.T) {
	detector := nn.NewScriptedDetector([]string{"person", "cat"},
		nn.ObjectDetection{Class: 1, Confidence: 0.90, Box: nn.Rect{X: 5, Y: 5, Width: 20, Height: 20}},
		nn.ObjectDetection{Class: 0, Confidence: 0.81, Box: nn.Rect{X: 10, Y: 10, Width: 30, Height: 20}},
	)
	p, _, publicRoot := newTestPipeline(t, detector)

	result, err := p.RunImage(ingestTestImage(t, "dog.jpg"))
	require.NoError(t, err)
	require.Equal(t, 1, detector.NumCalls)

	// cat is not in the relevance set, so only the person appears
	require.Equal(t, []string{"person (0.81)"}, result.Summary)
	require.Len(t, result.Detections, 1)
	require.Equal(t, "/public/dog.jpg", result.MediaURL)
	require.FileExists(t, filepath.Join(publicRoot, "dog.jpg"))

	// The run dir keeps its own copy (publish copies, it does not move)
	require.FileExists(t, filepath.Join(p.RunsRoot(), result.RunID, AnnotatedImageName))
}

func TestRunImagePlaceholder(t *testing.T) {
	detector := nn.NewScriptedDetector([]string{"person"})
	p, _, _ := newTestPipeline(t, detector)

	result, err := p.RunImage(ingestTestImage(t, "empty.jpg"))
	require.NoError(t, err)
	require.Equal(t, []string{PlaceholderNoDetections}, result.Summary)
	require.Len(t, result.Detections, 0)
}

func TestRunImageDecodeFailed(t *testing.T) {
	detector := nn.NewScriptedDetector([]string{"person"})
	p, _, publicRoot := newTestPipeline(t, detector)

	dir := t.TempDir()
	badFile := filepath.Join(dir, "corrupt.jpg")
	require.NoError(t, os.WriteFile(badFile, []byte("not a jpeg"), 0600))

	_, err := p.RunImage(&ingest.UploadedMedia{
		OriginalName:  "corrupt.jpg",
		SanitizedName: "corrupt.jpg",
		StoredPath:    badFile,
		Kind:          ingest.KindImage,
	})
	require.ErrorIs(t, err, ErrDecodeFailed)
	// Detector never invoked, nothing published
	require.Equal(t, 0, detector.NumCalls)
	entries, err2 := os.ReadDir(publicRoot)
	require.NoError(t, err2)
	require.Len(t, entries, 0)
}

func TestPublishLastWriteWins(t *testing.T) {
	detector := nn.NewScriptedDetector([]string{"person"})
	p, _, publicRoot := newTestPipeline(t, detector)

	_, runDir1, err := p.NewRunDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(runDir1, AnnotatedImageName), []byte("first"), 0600))
	_, err = p.Publish(runDir1, AnnotatedImageName, "dog.jpg")
	require.NoError(t, err)

	_, runDir2, err := p.NewRunDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(runDir2, AnnotatedImageName), []byte("second"), 0600))
	_, err = p.Publish(runDir2, AnnotatedImageName, "dog.jpg")
	require.NoError(t, err)

	// Both run artifacts remain, but the public copy is the newest
	require.FileExists(t, filepath.Join(runDir1, AnnotatedImageName))
	require.FileExists(t, filepath.Join(runDir2, AnnotatedImageName))
	content, err := os.ReadFile(filepath.Join(publicRoot, "dog.jpg"))
	require.NoError(t, err)
	require.Equal(t, "second", string(content))
}

func TestPublishArtifactNotFound(t *testing.T) {
	detector := nn.NewScriptedDetector([]string{"person"})
	p, _, _ := newTestPipeline(t, detector)

	_, runDir, err := p.NewRunDir()
	require.NoError(t, err)
	_, err = p.Publish(runDir, AnnotatedImageName, "dog.jpg")
	require.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestPublishStripsPathComponents(t *testing.T) {
	detector := nn.NewScriptedDetector([]string{"person"})
	p, _, publicRoot := newTestPipeline(t, detector)

	_, runDir, err := p.NewRunDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(runDir, AnnotatedImageName), []byte("x"), 0600))
	url, err := p.Publish(runDir, AnnotatedImageName, "../../evil.jpg")
	require.NoError(t, err)
	require.Equal(t, "/public/evil.jpg", url)
	require.FileExists(t, filepath.Join(publicRoot, "evil.jpg"))
}
