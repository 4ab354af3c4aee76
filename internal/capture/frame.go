package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"

	"github.com/user/classwatch/internal/types"
)

// ErrUnready marks a frame with no usable pixels yet. The scheduler skips
// the tick silently rather than treating it as a failure.
var ErrUnready = errors.New("video not ready")

// EncodeSquare renders a center-cropped square downscale of img at the given
// edge size and encodes it as JPEG.
func EncodeSquare(img image.Image, size, quality int, at time.Time) (*types.Frame, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, ErrUnready
	}

	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	return &types.Frame{
		JPEG:       buf.Bytes(),
		Width:      size,
		Height:     size,
		CapturedAt: at,
	}, nil
}
