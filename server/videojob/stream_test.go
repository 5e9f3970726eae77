package videojob

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sightd/sightd/server/nn"
	"github.com/sightd/sightd/server/pipeline"
	"github.com/stretchr/testify/require"
)

func TestStreamMJPEGNoFinishedJob(t *testing.T) {
	detector := nn.NewScriptedDetector([]string{"person"})
	m, _ := newTestManager(t, detector, 1)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/video_feed", nil)
	err := m.StreamMJPEG(w, r)
	require.ErrorIs(t, err, pipeline.ErrArtifactNotFound)
}

func TestStreamMJPEGFromRunDir(t *testing.T) {
	detector := nn.NewScriptedDetector([]string{"person"})
	m, _ := newTestManager(t, detector, 2)

	job := submitTestVideo(t, m, "clip.mp4")
	_, err := m.Wait(job.ID)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/video_feed", nil)
	require.NoError(t, m.StreamMJPEG(w, r))

	require.Equal(t, "multipart/x-mixed-replace; boundary=frame", w.Header().Get("Content-Type"))
	body := w.Body.String()
	require.Equal(t, 2, strings.Count(body, "--frame\r\n"))
	require.Contains(t, body, "Content-Type: image/jpeg")
}

func TestStreamMJPEGReExtractsWhenRunDirSwept(t *testing.T) {
	detector := nn.NewScriptedDetector([]string{"person"})
	m, pipe := newTestManager(t, detector, 2)

	job := submitTestVideo(t, m, "swept.mp4")
	finished, err := m.Wait(job.ID)
	require.NoError(t, err)

	// simulate retention removing the run dir; the published artifact survives
	require.NoError(t, os.RemoveAll(filepath.Join(pipe.RunsRoot(), finished.RunID)))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/video_feed", nil)
	require.NoError(t, m.StreamMJPEG(w, r))
	require.Equal(t, 2, strings.Count(w.Body.String(), "--frame\r\n"))
}
