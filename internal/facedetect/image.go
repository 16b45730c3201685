package facedetect

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ScaledFrame is a frame re-encoded for the detector.
type ScaledFrame struct {
	Data   []byte
	Width  int
	Height int
}

// ScaleFrame decodes a camera frame and shrinks it so its longer side is at
// most maxSize, keeping the aspect ratio. The result is always JPEG.
func ScaleFrame(data []byte, maxSize int) (ScaledFrame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ScaledFrame{}, fmt.Errorf("failed to decode frame: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var out image.Image = img
	if maxSize > 0 && (width > maxSize || height > maxSize) {
		if width > height {
			height = max(1, int(float64(height)*float64(maxSize)/float64(width)))
			width = maxSize
		} else {
			width = max(1, int(float64(width)*float64(maxSize)/float64(height)))
			height = maxSize
		}
		resized := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85}); err != nil {
		return ScaledFrame{}, fmt.Errorf("failed to encode frame: %w", err)
	}
	return ScaledFrame{Data: buf.Bytes(), Width: width, Height: height}, nil
}
