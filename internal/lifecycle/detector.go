package lifecycle

import (
	"context"
	"mime"
	"net/http"
	"strings"
	"time"
)

// CallStateDetector reports whether the user currently appears to be in a
// call. Detection is best-effort heuristics against surfaces with no
// stability contract; callers must tolerate both false negatives and false
// positives.
type CallStateDetector interface {
	InCall(ctx context.Context) bool
}

// joinKeywords and leaveKeywords span the locales the meeting UI has been
// observed in.
var joinKeywords = []string{"join now", "ask to join", "sertai", "rejoin"}
var leaveKeywords = []string{"leave call", "end call", "tinggalkan"}

// MatchJoinIntent reports whether a clicked control's text or label reads
// like a join action.
func MatchJoinIntent(label string) bool {
	return matchAny(label, joinKeywords)
}

// MatchLeaveIntent reports whether a clicked control's text or label reads
// like a leave action.
func MatchLeaveIntent(label string) bool {
	return matchAny(label, leaveKeywords)
}

func matchAny(label string, keywords []string) bool {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// ProbeDetector treats a reachable MJPEG feed as evidence of an active call.
type ProbeDetector struct {
	urls    []string
	timeout time.Duration
	client  *http.Client
}

// NewProbeDetector creates a detector that probes the candidate stream URLs.
func NewProbeDetector(urls []string, timeout time.Duration) *ProbeDetector {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeDetector{
		urls:    urls,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// InCall returns true when any candidate feed answers with a multipart
// stream.
func (d *ProbeDetector) InCall(ctx context.Context) bool {
	for _, url := range d.urls {
		if d.probe(ctx, url) {
			return true
		}
	}
	return false
}

func (d *ProbeDetector) probe(ctx context.Context, url string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}
