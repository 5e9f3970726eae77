package videojob

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
)

// ErrVideoOpenFailed means ffmpeg could not read the source video. Fatal to
// the invocation; no partial output is published.
var ErrVideoOpenFailed = errors.New("Error opening video")

// framePattern is the printf-style name for numbered frame files
const framePattern = "%06d.jpg"

// extractFrames decomposes the video at src into numbered JPEG frames
// inside framesDir.
func extractFrames(src, framesDir string) error {
	args := []string{
		"ffmpeg",
		"-i",
		src,
		"-y",
		"-qscale:v", // JPEG quality
		"2",
		filepath.Join(framesDir, framePattern),
	}
	if err := runFFmpeg(args); err != nil {
		return fmt.Errorf("%w: %v", ErrVideoOpenFailed, err)
	}
	return nil
}

// assembleVideo re-encodes the numbered JPEG frames in framesDir into an mp4
func assembleVideo(framesDir, dst string, fps int) error {
	args := []string{
		"ffmpeg",
		"-y",
		"-framerate",
		strconv.Itoa(fps),
		"-i",
		filepath.Join(framesDir, framePattern),
		"-pix_fmt", // broad player compatibility
		"yuv420p",
		dst,
	}
	return runFFmpeg(args)
}

func runFFmpeg(args []string) error {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("Unable to find ffmpeg in your path (%w)", err)
	}
	cmd := &exec.Cmd{
		Path: ffmpeg,
		Args: args,
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		outStr := ""
		if out != nil {
			outStr = string(out)
		}
		return fmt.Errorf("ffmpeg execution failed: %w (%v)", err, outStr)
	}
	return nil
}

// listFrames returns the frame files in framesDir in frame-number order
func listFrames(framesDir string) ([]string, error) {
	frames, err := filepath.Glob(filepath.Join(framesDir, "*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(frames)
	return frames, nil
}
