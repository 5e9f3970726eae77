package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sightd/sightd/server/metrics"
)

// PublicURLPrefix is where the HTTP layer serves the public directory.
const PublicURLPrefix = "/public/"

// Publish copies the named artifact out of a run directory into the public
// directory under targetName, and returns the browser-servable URL.
// The run directory's copy remains; the retention sweeper cleans it up.
// Publishing the same targetName twice is last-write-wins.
func (p *Pipeline) Publish(runDir, artifactName, targetName string) (string, error) {
	src := filepath.Join(runDir, artifactName)
	if _, err := os.Stat(src); err != nil {
		metrics.PipelineFailures.WithLabelValues("materialize").Inc()
		p.log.Errorf("Artifact %v missing after successful detection run: %v", src, err)
		return "", ErrArtifactNotFound
	}
	dst := filepath.Join(p.publicRoot, filepath.Base(targetName))
	if err := copyFile(src, dst); err != nil {
		metrics.PipelineFailures.WithLabelValues("materialize").Inc()
		return "", fmt.Errorf("Failed to publish artifact %v: %w", src, err)
	}
	return PublicURLPrefix + filepath.Base(targetName), nil
}

// PublicPath resolves a published name back to its filesystem path.
func (p *Pipeline) PublicPath(name string) string {
	return filepath.Join(p.publicRoot, filepath.Base(name))
}

// LatestRunDir returns the run directory with the newest modification time.
// Ties are broken lexicographically on the full path, so the choice is
// deterministic. Returns ErrArtifactNotFound if there are no run dirs.
func LatestRunDir(runsRoot string) (string, error) {
	entries, err := os.ReadDir(runsRoot)
	if err != nil {
		return "", err
	}
	type candidate struct {
		path    string
		modTime int64
	}
	candidates := []candidate{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(runsRoot, entry.Name()),
			modTime: info.ModTime().UnixNano(),
		})
	}
	if len(candidates) == 0 {
		return "", ErrArtifactNotFound
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].modTime != candidates[b].modTime {
			return candidates[a].modTime > candidates[b].modTime
		}
		return candidates[a].path > candidates[b].path
	})
	return candidates[0].path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	errClose := out.Close()
	if err != nil {
		return err
	}
	return errClose
}
