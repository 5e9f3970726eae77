package nn

import (
	"github.com/bmharper/cimg/v2"
)

// ScriptedDetector is an ObjectDetector for unit tests. It returns a fixed
// list of detections for every image, and counts invocations.
type ScriptedDetector struct {
	Model      ModelConfig
	Detections []ObjectDetection
	Err        error
	NumCalls   int
}

func NewScriptedDetector(classes []string, detections ...ObjectDetection) *ScriptedDetector {
	return &ScriptedDetector{
		Model: ModelConfig{
			Architecture: "scripted",
			Width:        640,
			Height:       640,
			Classes:      classes,
		},
		Detections: detections,
	}
}

func (d *ScriptedDetector) Close() {}

func (d *ScriptedDetector) DetectObjects(img *cimg.Image, params *DetectionParams) ([]ObjectDetection, error) {
	d.NumCalls++
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Detections, nil
}

func (d *ScriptedDetector) Config() *ModelConfig {
	return &d.Model
}
