// Package capture grabs frames from a video feed on a fixed period and hands
// them, center-cropped and JPEG-encoded, to the engagement client.
package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// Source yields decoded frames from a video feed. Next blocks until a frame
// is available or the stream fails.
type Source interface {
	Next() (image.Image, error)
	Close() error
}

// PickOptions controls video source selection.
type PickOptions struct {
	// StreamURLs are candidate MJPEG feeds (meeting tiles), probed in order.
	StreamURLs []string
	// MinWidth/MinHeight disqualify thumbnail-sized feeds.
	MinWidth  int
	MinHeight int
	// ProbeTimeout bounds how long a candidate may take to produce a frame.
	ProbeTimeout time.Duration
	// FFmpegPath and Device configure the local webcam fallback.
	FFmpegPath string
	Device     string
}

// PickSource probes every candidate stream, keeps the one with the largest
// pixel area that meets the minimum dimensions, and falls back to the local
// webcam when no stream qualifies. Returns an error when no source at all is
// obtainable.
func PickSource(ctx context.Context, opts PickOptions) (Source, error) {
	var best *MJPEGSource
	var bestArea int

	for _, url := range opts.StreamURLs {
		src, err := OpenMJPEG(ctx, url)
		if err != nil {
			slog.Debug("stream candidate unavailable", "url", url, "error", err)
			continue
		}
		img, err := src.probe(opts.ProbeTimeout)
		if err != nil {
			slog.Debug("stream candidate produced no frame", "url", url, "error", err)
			src.Close()
			continue
		}
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		area := w * h
		if w >= opts.MinWidth && h >= opts.MinHeight && area > bestArea {
			if best != nil {
				best.Close()
			}
			best = src
			bestArea = area
			continue
		}
		src.Close()
	}
	if best != nil {
		return best, nil
	}

	slog.Info("no qualifying stream, falling back to local camera", "device", opts.Device)
	cam, err := OpenDevice(opts.FFmpegPath, opts.Device)
	if err != nil {
		return nil, fmt.Errorf("no video source available: %w", err)
	}
	return cam, nil
}

// MJPEGSource reads frames from a multipart/x-mixed-replace JPEG stream.
type MJPEGSource struct {
	url     string
	resp    *http.Response
	reader  *multipart.Reader
	pending image.Image
}

// OpenMJPEG connects to an MJPEG stream. The context governs the lifetime of
// the connection, not just the dial.
func OpenMJPEG(ctx context.Context, url string) (*MJPEGSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("not an MJPEG stream: content-type %q", resp.Header.Get("Content-Type"))
	}

	return &MJPEGSource{
		url:    url,
		resp:   resp,
		reader: multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

// probe reads one frame within the timeout and parks it so the next Next()
// call returns it. A stalled stream is unblocked by closing the body.
func (s *MJPEGSource) probe(timeout time.Duration) (image.Image, error) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	timer := time.AfterFunc(timeout, func() { s.resp.Body.Close() })
	defer timer.Stop()

	img, err := s.Next()
	if err != nil {
		return nil, err
	}
	s.pending = img
	return img, nil
}

// Next returns the next decoded frame from the stream.
func (s *MJPEGSource) Next() (image.Image, error) {
	if s.pending != nil {
		img := s.pending
		s.pending = nil
		return img, nil
	}
	part, err := s.reader.NextPart()
	if err != nil {
		return nil, fmt.Errorf("read stream part: %w", err)
	}
	data, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("read frame data: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Close terminates the stream connection.
func (s *MJPEGSource) Close() error {
	return s.resp.Body.Close()
}

// DeviceSource reads frames from a local webcam through an ffmpeg pipe
// emitting concatenated JPEGs.
type DeviceSource struct {
	cmd *exec.Cmd
	out *bufio.Reader
}

// OpenDevice starts ffmpeg against the given capture device.
func OpenDevice(ffmpegPath, device string) (*DeviceSource, error) {
	cmd := exec.Command(ffmpegPath,
		"-loglevel", "error",
		"-f", "v4l2",
		"-i", device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return &DeviceSource{cmd: cmd, out: bufio.NewReaderSize(stdout, 1<<20)}, nil
}

// Next returns the next decoded frame from the camera pipe.
func (d *DeviceSource) Next() (image.Image, error) {
	data, err := readJPEG(d.out)
	if err != nil {
		return nil, fmt.Errorf("read camera frame: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode camera frame: %w", err)
	}
	return img, nil
}

// Close stops ffmpeg and releases the camera.
func (d *DeviceSource) Close() error {
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	return d.cmd.Wait()
}

// readJPEG scans the pipe for one SOI..EOI JPEG image.
func readJPEG(br *bufio.Reader) ([]byte, error) {
	// Seek start-of-image marker.
	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != 0xFF {
			continue
		}
		next, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		if next == 0xD8 {
			break
		}
	}

	data := []byte{0xFF, 0xD8}
	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)
		if b != 0xFF {
			continue
		}
		next, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, next)
		if next == 0xD9 {
			return data, nil
		}
	}
}
