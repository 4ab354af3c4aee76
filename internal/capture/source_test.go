package capture

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func mjpegServer(t *testing.T, frame []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for i := 0; i < 100; i++ {
			io.WriteString(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n")
			w.Write(frame)
			io.WriteString(w, "\r\n")
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}))
}

func TestOpenMJPEG(t *testing.T) {
	srv := mjpegServer(t, encodeTestJPEG(t, 320, 240))
	defer srv.Close()

	src, err := OpenMJPEG(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	img, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("expected 320x240 frame, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestOpenMJPEGRejectsNonStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html></html>")
	}))
	defer srv.Close()

	if _, err := OpenMJPEG(context.Background(), srv.URL); err == nil {
		t.Error("expected non-multipart response rejected")
	}
}

func TestPickSourcePrefersLargestQualifyingStream(t *testing.T) {
	small := mjpegServer(t, encodeTestJPEG(t, 160, 120))
	defer small.Close()
	large := mjpegServer(t, encodeTestJPEG(t, 640, 480))
	defer large.Close()

	src, err := PickSource(context.Background(), PickOptions{
		StreamURLs:   []string{small.URL, large.URL},
		MinWidth:     200,
		MinHeight:    150,
		ProbeTimeout: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	img, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 640 {
		t.Errorf("expected the large stream selected, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestPickSourceNoSource(t *testing.T) {
	_, err := PickSource(context.Background(), PickOptions{
		StreamURLs: []string{"http://127.0.0.1:1/stream"},
		FFmpegPath: "/nonexistent/ffmpeg",
		Device:     "/dev/video0",
	})
	if err == nil {
		t.Fatal("expected error when nothing is obtainable")
	}
}

func TestReadJPEG(t *testing.T) {
	frame := encodeTestJPEG(t, 32, 32)

	// Concatenated frames with pipe noise in between.
	var pipe bytes.Buffer
	pipe.Write([]byte{0x00, 0x11, 0x22})
	pipe.Write(frame)
	pipe.Write(frame)

	br := bufio.NewReader(&pipe)
	for i := 0; i < 2; i++ {
		data, err := readJPEG(br)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
			t.Fatalf("frame %d undecodable: %v", i, err)
		}
	}

	if _, err := readJPEG(br); err != io.EOF {
		t.Errorf("expected EOF after last frame, got %v", err)
	}
}
