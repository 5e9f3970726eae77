// Package nn is the object detection interface layer.
// The concrete detector (ONNX runtime) lives in onnx.go; everything else in
// the repo talks to ObjectDetector, so tests can inject a fake.
package nn

import (
	"encoding/json"
	"os"

	"github.com/bmharper/cimg/v2"
)

const DefaultProbabilityThreshold = 0.25
const DefaultNmsIouThreshold = 0.45

// ObjectDetection is an object that the detector has found in an image
type ObjectDetection struct {
	Class      int     `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// Object detection parameters
type DetectionParams struct {
	ProbabilityThreshold float32 // Value between 0 and 1. Lower values will find more objects. Zero value will use the default.
	NmsIouThreshold      float32 // Value between 0 and 1. Lower values will merge more objects together into one. Zero value will use the default.
}

// Create a default DetectionParams object
func NewDetectionParams() *DetectionParams {
	return &DetectionParams{
		ProbabilityThreshold: DefaultProbabilityThreshold,
		NmsIouThreshold:      DefaultNmsIouThreshold,
	}
}

// ObjectDetector is given an image, and returns zero or more detected objects.
// Detections are returned in the order that the underlying model emitted
// them. We do not sort by confidence or class.
type ObjectDetector interface {
	// Close closes the detector (you MUST call this when finished, because there are C objects underneath)
	Close()

	// DetectObjects returns a list of objects detected in the image
	DetectObjects(img *cimg.Image, params *DetectionParams) ([]ObjectDetection, error)

	// Model Config.
	// Callers assume that ModelConfig will remain constant, so don't change it
	// once the detector has been created.
	Config() *ModelConfig
}

// ModelConfig is saved in a JSON file along with the weights of the model
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "yolov8"
	Width        int      `json:"width"`        // eg 640
	Height       int      `json:"height"`       // eg 640
	Classes      []string `json:"classes"`      // eg ["person", "bicycle", "car", ...]
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// ClassName returns the name of the given class index, or "" if out of range
func (c *ModelConfig) ClassName(class int) string {
	if class < 0 || class >= len(c.Classes) {
		return ""
	}
	return c.Classes[class]
}
