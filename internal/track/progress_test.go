package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_FractionOfExpectedOutputs(t *testing.T) {
	t.Parallel()

	e := Estimator{ExpectedOutputs: 4}

	assert.Equal(t, 25, e.Estimate([]string{"a"}, "", 0, 0))
	assert.Equal(t, 50, e.Estimate([]string{"a", "b"}, "", 0, 0))
	assert.Equal(t, 99, e.Estimate([]string{"a", "b", "c", "d"}, "", 0, 0),
		"a full fraction still stays below 100")
}

func TestEstimate_StageTable(t *testing.T) {
	t.Parallel()

	e := Estimator{Stages: map[string]int{"load": 10, "sample": 70}}

	// The executing node wins when known.
	assert.Equal(t, 70, e.Estimate(nil, "sample", 0, 0))

	// Without an executing signal, the highest done stage counts.
	assert.Equal(t, 10, e.Estimate([]string{"load"}, "", 0, 0))
	assert.Equal(t, 70, e.Estimate([]string{"load", "sample"}, "", 0, 0))

	// An unknown node with no done stages yields zero.
	assert.Equal(t, 0, e.Estimate(nil, "mystery", 0, 0))
}

func TestEstimate_TimeInterpolation(t *testing.T) {
	t.Parallel()

	e := Estimator{ExpectedDuration: 100 * time.Second}

	assert.Equal(t, 25, e.Estimate(nil, "", 25*time.Second, 0))
	assert.Equal(t, 99, e.Estimate(nil, "", 150*time.Second, 0),
		"overruns are capped below 100")
}

func TestEstimate_NeverRegresses(t *testing.T) {
	t.Parallel()

	e := Estimator{Stages: map[string]int{"sample": 70}}

	// A flaky poll with no signals must not pull the number back down.
	assert.Equal(t, 70, e.Estimate(nil, "", 0, 70))
	assert.Equal(t, 70, e.Estimate(nil, "sample", 0, 50))
}

func TestEstimate_PriorityOrder(t *testing.T) {
	t.Parallel()

	// Fraction beats stage table beats time.
	e := Estimator{
		ExpectedOutputs:  2,
		Stages:           map[string]int{"sample": 70},
		ExpectedDuration: 10 * time.Second,
	}
	assert.Equal(t, 50, e.Estimate([]string{"a"}, "sample", 9*time.Second, 0))

	// With no outputs yet, the stage table takes over.
	assert.Equal(t, 70, e.Estimate(nil, "sample", 9*time.Second, 0))

	// With neither, time interpolation is the last resort.
	assert.Equal(t, 90, e.Estimate(nil, "", 9*time.Second, 0))
}
