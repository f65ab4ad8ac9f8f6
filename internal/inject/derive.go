package inject

import "math"

// Size is a canonical output resolution.
type Size struct {
	Width  int
	Height int
}

// The three canonical formats the generation models accept.
var (
	Landscape = Size{Width: 1024, Height: 576} // 16:9
	Portrait  = Size{Width: 576, Height: 1024} // 9:16
	Square    = Size{Width: 576, Height: 576}  // 1:1
)

// Duration converts a raw media duration in seconds into the whole-second
// value injected into the graph: rounded up to the next second plus a one
// second safety margin, so the generated output never ends before the
// input media does.
func Duration(rawSeconds float64) int {
	if rawSeconds < 0 {
		rawSeconds = 0
	}
	return int(math.Ceil(rawSeconds)) + 1
}

// OptimalSize picks the canonical format closest to the given pixel
// dimensions by absolute aspect-ratio difference. Ties resolve landscape
// over portrait over square; non-positive dimensions (an unreadable image)
// default to square.
func OptimalSize(width, height int) Size {
	if width <= 0 || height <= 0 {
		return Square
	}
	ratio := float64(width) / float64(height)

	landscapeDiff := math.Abs(ratio - 16.0/9.0)
	portraitDiff := math.Abs(ratio - 9.0/16.0)
	squareDiff := math.Abs(ratio - 1.0)

	switch {
	case landscapeDiff <= portraitDiff && landscapeDiff <= squareDiff:
		return Landscape
	case portraitDiff <= squareDiff:
		return Portrait
	default:
		return Square
	}
}
