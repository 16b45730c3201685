package facedetect

// ToRelative converts a pixel bbox [x1, y1, x2, y2] to relative (0-1)
// coordinates, clamped to the frame.
func ToRelative(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	return []float64{
		clamp01(bbox[0] / float64(width)),
		clamp01(bbox[1] / float64(height)),
		clamp01(bbox[2] / float64(width)),
		clamp01(bbox[3] / float64(height)),
	}
}

// Area returns the area of a relative [x1, y1, x2, y2] box.
func Area(bbox []float64) float64 {
	if len(bbox) != 4 || bbox[2] <= bbox[0] || bbox[3] <= bbox[1] {
		return 0
	}
	return (bbox[2] - bbox[0]) * (bbox[3] - bbox[1])
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
