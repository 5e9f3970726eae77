package nn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRelevanceFilter(t *testing.T) {
	model := &ModelConfig{
		Classes: []string{"person", "cat", "car"},
	}
	filter := NewRelevanceFilter([]string{"person", "car"}, 0.25)

	dets := []ObjectDetection{
		{Class: 1, Confidence: 0.90, Box: Rect{0, 0, 10, 10}},  // cat: not in allow-list
		{Class: 0, Confidence: 0.81, Box: Rect{5, 5, 20, 20}},  // person: kept
		{Class: 2, Confidence: 0.10, Box: Rect{1, 1, 30, 30}},  // car: below threshold
		{Class: 0, Confidence: 0.25, Box: Rect{9, 9, 12, 12}},  // person: exactly at threshold, kept
	}
	kept := filter.Filter(dets, model)
	require.Len(t, kept, 2)
	// Order is preserved, not re-sorted by confidence
	require.Equal(t, float32(0.81), kept[0].Confidence)
	require.Equal(t, float32(0.25), kept[1].Confidence)
	for _, det := range kept {
		require.GreaterOrEqual(t, det.Confidence, float32(0.25))
		require.True(t, filter.IsRelevant(model.ClassName(det.Class), det.Confidence))
	}
}

func TestRelevanceFilterEmpty(t *testing.T) {
	model := &ModelConfig{Classes: []string{"person"}}
	filter := NewRelevanceFilter([]string{"person"}, 0.25)
	kept := filter.Filter(nil, model)
	require.NotNil(t, kept)
	require.Len(t, kept, 0)
}

func TestRelevanceFilterDefaultClasses(t *testing.T) {
	filter := NewRelevanceFilter(nil, 0)
	require.True(t, filter.IsRelevant("person", 0.5))
	require.True(t, filter.IsRelevant("Person", 0.5))
	require.False(t, filter.IsRelevant("zebra", 0.5))
}

func TestRelevanceFilterDefaultThreshold(t *testing.T) {
	filter := NewRelevanceFilter(DefaultRelevantClasses, 0)
	require.Equal(t, float32(DefaultProbabilityThreshold), filter.MinConfidence)
	require.True(t, filter.IsRelevant("crosswalk", 0.30))
	require.False(t, filter.IsRelevant("crosswalk", 0.20))
	require.False(t, filter.IsRelevant("zebra", 0.99))
}
