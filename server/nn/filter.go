package nn

// RelevanceFilter decides which raw detections are worth showing to the
// user: the class must be in the allow-list AND the confidence must be at
// least MinConfidence. Anything else is dropped, not merely hidden.
// Read-only after construction, so it is safe to share between requests.
type RelevanceFilter struct {
	MinConfidence float32
	classes       map[string]bool
}

// DefaultRelevantClasses is the label set of the navigation-assistance model
// that this service was built around. Note the duplicated casings ("Person"
// vs "person"): the model was trained on a merge of datasets with
// inconsistent label casing, so both spellings occur in its class list.
var DefaultRelevantClasses = []string{
	"Bus", "Bushes", "Person", "Truck", "backpack", "bench", "bicycle",
	"boat", "branch", "car", "chair", "clock", "crosswalk", "door",
	"elevator", "fire_hydrant", "green_light", "gun", "handbag",
	"motorcycle", "person", "pothole", "rat", "red_light", "scooter",
	"sheep", "stairs", "stop_sign", "suitcase", "traffic light",
	"traffic_cone", "train", "tree", "truck", "umbrella", "yellow_light",
}

func NewRelevanceFilter(classes []string, minConfidence float32) *RelevanceFilter {
	if minConfidence == 0 {
		minConfidence = DefaultProbabilityThreshold
	}
	if len(classes) == 0 {
		classes = DefaultRelevantClasses
	}
	set := make(map[string]bool, len(classes))
	for _, c := range classes {
		set[c] = true
	}
	return &RelevanceFilter{
		MinConfidence: minConfidence,
		classes:       set,
	}
}

func (f *RelevanceFilter) IsRelevant(className string, confidence float32) bool {
	return f.classes[className] && confidence >= f.MinConfidence
}

// Filter returns the relevant subset of detections, preserving the order in
// which the detector emitted them.
func (f *RelevanceFilter) Filter(detections []ObjectDetection, model *ModelConfig) []ObjectDetection {
	kept := []ObjectDetection{}
	for _, det := range detections {
		if f.IsRelevant(model.ClassName(det.Class), det.Confidence) {
			kept = append(kept, det)
		}
	}
	return kept
}
