package frames

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const (
	DefaultResolution  = 1024
	DefaultJPEGQuality = 75

	MediaTypeJPEG = "image/jpeg"
)

// Encoder center-crops frames to a square, scales them to Resolution and
// encodes them as JPEG. Every frame comes out Resolution pixels square,
// whatever the camera delivers.
type Encoder struct {
	Resolution int
	Quality    int
}

func NewEncoder() Encoder {
	return Encoder{Resolution: DefaultResolution, Quality: DefaultJPEGQuality}
}

func (e Encoder) Encode(img image.Image) (Frame, error) {
	if img == nil {
		return Frame{}, fmt.Errorf("no image to encode")
	}

	bounds := img.Bounds()
	side := min(bounds.Dx(), bounds.Dy())
	if side <= 0 {
		return Frame{}, fmt.Errorf("empty image %dx%d", bounds.Dx(), bounds.Dy())
	}
	crop := image.Rect(0, 0, side, side).Add(image.Point{
		X: bounds.Min.X + (bounds.Dx()-side)/2,
		Y: bounds.Min.Y + (bounds.Dy()-side)/2,
	})

	target := e.Resolution
	if target <= 0 {
		target = DefaultResolution
	}

	dst := image.NewRGBA(image.Rect(0, 0, target, target))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)

	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return Frame{}, fmt.Errorf("failed to encode frame: %w", err)
	}

	return Frame{Data: buf.Bytes(), MediaType: MediaTypeJPEG, Width: target, Height: target}, nil
}
