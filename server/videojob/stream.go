package videojob

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sightd/sightd/server/pipeline"
)

const mjpegBoundary = "frame"

// pause between frames of the live feed
const streamFrameDelay = 100 * time.Millisecond

// StreamMJPEG streams the annotated video of the most recent finished job
// as multipart JPEG frames, the way IP cameras serve their live feeds.
// Browsers render this natively inside an <img> tag.
func (m *Manager) StreamMJPEG(w http.ResponseWriter, r *http.Request) error {
	job := m.LatestDone()
	if job == nil {
		return pipeline.ErrArtifactNotFound
	}

	// The run dir keeps the annotated frames from the original job, but
	// retention may have swept it, so re-extract from the published artifact.
	framesDir := filepath.Join(m.pipe.RunsRoot(), job.RunID, "annotated")
	frames, err := listFrames(framesDir)
	if err != nil || len(frames) == 0 {
		tempDir, err := os.MkdirTemp("", "sightd-feed-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tempDir)
		if err := m.extract(m.pipe.PublicPath(job.TargetName), tempDir); err != nil {
			return err
		}
		if frames, err = listFrames(tempDir); err != nil {
			return err
		}
		return m.streamFrames(w, r, frames)
	}
	return m.streamFrames(w, r, frames)
}

func (m *Manager) streamFrames(w http.ResponseWriter, r *http.Request, frames []string) error {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	ticker := time.NewTicker(streamFrameDelay)
	defer ticker.Stop()

	for _, frame := range frames {
		data, err := os.ReadFile(frame)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "--%v\r\nContent-Type: image/jpeg\r\nContent-Length: %v\r\n\r\n", mjpegBoundary, len(data)); err != nil {
			return nil // client went away
		}
		if _, err := w.Write(data); err != nil {
			return nil
		}
		if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
			return nil
		}
		if flusher != nil {
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
