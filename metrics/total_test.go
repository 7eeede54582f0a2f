package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionTotal(t *testing.T) {
	total := NewSessionTotal(nil)
	total.Add(1.0)
	total.Add(3.0)

	assert.Equal(t, 2.0, total.Average())
	assert.Equal(t, 1.0, total.Min())
	assert.Equal(t, 3.0, total.Max())
	assert.Equal(t, 4.0, total.Sum())
	assert.Equal(t, 2, total.Count())
}

func TestSessionTotalEmpty(t *testing.T) {
	total := NewSessionTotal(nil)

	assert.Equal(t, 0.0, total.Average())
	assert.Equal(t, 0.0, total.Min())
	assert.Equal(t, 0.0, total.Max())
}

func TestSessionTotalFirstAddSetsExtremes(t *testing.T) {
	total := NewSessionTotal(nil)
	total.Add(-4)

	assert.Equal(t, -4.0, total.Min())
	assert.Equal(t, -4.0, total.Max())
}

func TestSessionTotalTransform(t *testing.T) {
	total := NewSessionTotal(SpeedToPaceMinutesPerKm)
	total.Add(4.0)
	total.Add(0)

	assert.InDelta(t, 1000.0/4.0/60.0, total.Max(), 1e-9)
	assert.Equal(t, 0.0, total.Min())
}

func TestDeltaTracker(t *testing.T) {
	var d DeltaTracker

	assert.Equal(t, 2.0, d.Delta(2.0))
	assert.Equal(t, 3.0, d.Delta(5.0))

	d.Reset()
	assert.Equal(t, 7.0, d.Delta(7.0))
}
