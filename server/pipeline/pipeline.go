// Package pipeline turns an ingested upload into a published, annotated
// result. It owns the per-invocation run directories and the publicly
// servable output directory.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/sightd/sightd/server/ingest"
	"github.com/sightd/sightd/server/metrics"
	"github.com/sightd/sightd/server/nn"
)

var (
	// ErrDecodeFailed means the uploaded image could not be decoded. The
	// detector is never invoked in this case.
	ErrDecodeFailed = errors.New("Error loading image")

	// ErrArtifactNotFound means the detector reported success but its output
	// artifact is missing. This is an internal invariant break between the
	// pipeline and the detection capability; it is logged as an operational
	// error and never retried.
	ErrArtifactNotFound = errors.New("Detection result artifact not found")
)

// PlaceholderNoDetections is the single summary entry used when the filtered
// detection list is empty. Callers must treat it as a message, not as a
// detection.
const PlaceholderNoDetections = "No relevant objects detected."

const AnnotatedImageName = "annotated.jpg"
const AnnotatedVideoName = "annotated.mp4"

// Pipeline is safe for concurrent use: each invocation works inside its own
// run directory, and the only shared mutable state is the public directory,
// where same-named publishes are last-write-wins.
type Pipeline struct {
	log        logs.Log
	detector   nn.ObjectDetector
	filter     *nn.RelevanceFilter
	runsRoot   string
	publicRoot string
}

// Result of one pipeline invocation
type Result struct {
	RunID      string
	Detections []nn.ObjectDetection // relevance-filtered, in detector order
	Summary    []string             // "<label> (<confidence>)" strings, or the placeholder
	MediaURL   string               // browser-servable reference to the published artifact
}

func New(log logs.Log, detector nn.ObjectDetector, filter *nn.RelevanceFilter, runsRoot, publicRoot string) (*Pipeline, error) {
	for _, dir := range []string{runsRoot, publicRoot} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("Failed to create pipeline directory %v: %w", dir, err)
		}
	}
	return &Pipeline{
		log:        log,
		detector:   detector,
		filter:     filter,
		runsRoot:   runsRoot,
		publicRoot: publicRoot,
	}, nil
}

func (p *Pipeline) Detector() nn.ObjectDetector {
	return p.detector
}

func (p *Pipeline) Filter() *nn.RelevanceFilter {
	return p.filter
}

func (p *Pipeline) RunsRoot() string {
	return p.runsRoot
}

// NewRunDir creates a fresh run directory and returns (runID, path).
// Namespacing each invocation under its own ID removes any race between
// concurrent invocations scanning for "the latest" output.
func (p *Pipeline) NewRunDir() (string, string, error) {
	runID := uuid.NewString()
	dir := filepath.Join(p.runsRoot, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", err
	}
	return runID, dir, nil
}

// RunImage executes the image pipeline: decode, detect, annotate, publish.
func (p *Pipeline) RunImage(media *ingest.UploadedMedia) (*Result, error) {
	img, err := cimg.ReadFile(media.StoredPath)
	if err != nil {
		metrics.PipelineFailures.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	runID, runDir, err := p.NewRunDir()
	if err != nil {
		return nil, err
	}

	params := nn.NewDetectionParams()
	params.ProbabilityThreshold = p.filter.MinConfidence
	raw, err := p.detector.DetectObjects(img, params)
	if err != nil {
		metrics.PipelineFailures.WithLabelValues("detect").Inc()
		return nil, err
	}
	cfg := p.detector.Config()

	// The artifact shows everything the capability returned; the summary
	// shows only the relevant subset.
	if err := nn.WriteAnnotatedJPEG(img, raw, cfg, filepath.Join(runDir, AnnotatedImageName)); err != nil {
		metrics.PipelineFailures.WithLabelValues("annotate").Inc()
		return nil, err
	}

	url, err := p.Publish(runDir, AnnotatedImageName, media.SanitizedName)
	if err != nil {
		return nil, err
	}

	filtered := p.filter.Filter(raw, cfg)
	metrics.DetectionsTotal.Add(float64(len(filtered)))
	p.log.Infof("Image run %v: %v raw, %v relevant detections in %v", runID, len(raw), len(filtered), media.SanitizedName)
	return &Result{
		RunID:      runID,
		Detections: filtered,
		Summary:    Summarize(filtered, cfg),
		MediaURL:   url,
	}, nil
}

// Summarize formats detections for display. An empty list yields exactly the
// one-element placeholder, never an empty slice.
func Summarize(detections []nn.ObjectDetection, cfg *nn.ModelConfig) []string {
	if len(detections) == 0 {
		return []string{PlaceholderNoDetections}
	}
	out := make([]string, 0, len(detections))
	for _, det := range detections {
		out = append(out, fmt.Sprintf("%v (%.2f)", cfg.ClassName(det.Class), det.Confidence))
	}
	return out
}
