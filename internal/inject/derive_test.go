package inject

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  float64
		want int
	}{
		{3.1, 5},  // ceil(3.1)=4, plus margin
		{4.0, 5},  // whole seconds still get the margin
		{7.8, 9},
		{0, 1},
		{0.01, 2},
		{-3, 1}, // negative durations are nonsense; clamp first
	}
	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("%v", tc.raw), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Duration(tc.raw))
		})
	}
}

func TestOptimalSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		width, height int
		want          Size
	}{
		{"full hd", 1920, 1080, Landscape},
		{"phone portrait", 1080, 1920, Portrait},
		{"exact square", 800, 800, Square},
		{"near square leans square", 700, 650, Square},
		{"wide leans landscape", 1400, 900, Landscape},
		{"tall leans portrait", 900, 1400, Portrait},
		{"zero width defaults square", 0, 600, Square},
		{"zero height defaults square", 600, 0, Square},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, OptimalSize(tc.width, tc.height))
		})
	}
}
