package metrics

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleMessageNormalizeDefaults(t *testing.T) {
	var msg SampleMessage
	require.NoError(t, json.Unmarshal([]byte(`{"heart_rate": 142, "elevation": -3.5}`), &msg))

	s := msg.Normalize()
	assert.Equal(t, 142.0, s.HeartRateBPM)
	assert.Equal(t, -3.5, s.ElevationM)
	assert.Zero(t, s.DistanceM)
	assert.Zero(t, s.SpeedMPS)
	assert.True(t, s.Timestamp.IsZero())
}

func TestSampleMessageNormalizeClampsCounters(t *testing.T) {
	neg := -10.0
	nan := math.NaN()
	msg := SampleMessage{Distance: &neg, Speed: &nan, Power: &neg}

	s := msg.Normalize()
	assert.Zero(t, s.DistanceM)
	assert.Zero(t, s.SpeedMPS)
	assert.Zero(t, s.PowerW)
}

func TestSanitizeKeepsNegativeElevation(t *testing.T) {
	s := sanitize(RawSample{ElevationM: -12, HeartRateBPM: math.Inf(1), StepCount: -1})

	assert.Equal(t, -12.0, s.ElevationM)
	assert.Zero(t, s.HeartRateBPM)
	assert.Zero(t, s.StepCount)
}
