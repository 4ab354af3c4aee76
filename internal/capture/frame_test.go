package capture

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"testing"
	"time"
)

func TestEncodeSquare(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 360))
	at := time.Now()

	frame, err := EncodeSquare(src, 128, 80, at)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Width != 128 || frame.Height != 128 {
		t.Errorf("expected 128x128 frame, got %dx%d", frame.Width, frame.Height)
	}
	if !frame.CapturedAt.Equal(at) {
		t.Errorf("expected capture time carried through")
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame.JPEG))
	if err != nil {
		t.Fatalf("decode encoded frame: %v", err)
	}
	if cfg.Width != 128 || cfg.Height != 128 {
		t.Errorf("expected 128x128 JPEG, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestEncodeSquareTallSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 800))

	frame, err := EncodeSquare(src, 64, 80, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if frame.Width != 64 || frame.Height != 64 {
		t.Errorf("expected 64x64 frame, got %dx%d", frame.Width, frame.Height)
	}
}

func TestEncodeSquareUnready(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 0, 0))

	if _, err := EncodeSquare(src, 128, 80, time.Now()); !errors.Is(err, ErrUnready) {
		t.Errorf("expected ErrUnready for an empty source, got %v", err)
	}
}
