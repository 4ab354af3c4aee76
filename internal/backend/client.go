// Package backend implements the HTTP client for the remote
// identification/inference service. The browser deployment reaches the same
// surface through an extension message hop; here the bypass header is
// attached directly to each request.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/user/classwatch/internal/types"
)

// Client talks to the classroom-engagement backend REST surface.
type Client struct {
	baseURL      string
	bypassHeader string
	client       *http.Client
}

// New creates a backend client for the given origin. bypassHeader, when
// non-empty, is sent with value "true" on every request (tunnel
// interstitial bypass).
func New(baseURL, bypassHeader string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		bypassHeader: bypassHeader,
		client:       &http.Client{Timeout: timeout},
	}
}

func (c *Client) setHeaders(req *http.Request, contentType string) {
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "Classwatch/1.0")
	if c.bypassHeader != "" {
		req.Header.Set(c.bypassHeader, "true")
	}
}

// postJSON sends a JSON body and decodes the JSON response into out.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, "application/json")
	return c.do(req, out)
}

// postFrame sends a JPEG frame as multipart form data and decodes the JSON
// response into out. The session id, when present, rides as a query
// parameter the way the backend expects it.
func (c *Client) postFrame(ctx context.Context, path string, frame *types.Frame, camera types.CameraID, session types.SessionID, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("frame", "frame.jpg")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(frame.JPEG); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := w.WriteField("camera_id", string(camera)); err != nil {
		return fmt.Errorf("write camera_id: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	endpoint := c.baseURL + path
	if session != "" {
		endpoint += "?session_id=" + url.QueryEscape(string(session))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, w.FormDataContentType())
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// StartSession opens a monitoring session for a course and returns the
// backend-issued session id.
func (c *Client) StartSession(ctx context.Context, req *types.SessionRequest) (types.SessionID, error) {
	var resp struct {
		OK        bool   `json:"ok"`
		SessionID string `json:"session_id"`
	}
	if err := c.postJSON(ctx, "/api/auto/session_from_meet", req, &resp); err != nil {
		return "", err
	}
	if !resp.OK || resp.SessionID == "" {
		return "", fmt.Errorf("session not created for course %s", req.CourseID)
	}
	return types.SessionID(resp.SessionID), nil
}

// Identify attempts to match the frame to a known student.
func (c *Client) Identify(ctx context.Context, frame *types.Frame, camera types.CameraID, session types.SessionID) (*types.IdentifyResult, error) {
	var resp struct {
		OK        bool        `json:"ok"`
		StudentID string      `json:"student_id"`
		Name      string      `json:"name"`
		Pending   bool        `json:"pending"`
		Score     float64     `json:"score"`
		BBox      *types.Rect `json:"bbox"`
	}
	if err := c.postFrame(ctx, "/api/identify", frame, camera, session, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		// The backend saw the frame but has nothing for us yet.
		return &types.IdentifyResult{Pending: true}, nil
	}
	return &types.IdentifyResult{
		StudentID: types.StudentID(resp.StudentID),
		Name:      resp.Name,
		Pending:   resp.Pending,
		Score:     resp.Score,
		BBox:      resp.BBox,
	}, nil
}

// inferEnvelope tolerates the several field spellings backend revisions have
// used for the label and confidence.
type inferEnvelope struct {
	OK         bool        `json:"ok"`
	State      *string     `json:"state"`
	Label      *string     `json:"label"`
	ClassName  *string     `json:"class_name"`
	Class      *string     `json:"class"`
	StateScore *float64    `json:"state_score"`
	Score      *float64    `json:"score"`
	Confidence *float64    `json:"confidence"`
	BBox       *types.Rect `json:"bbox"`
}

// label returns the first non-null label field in priority order.
func (e *inferEnvelope) label() string {
	for _, s := range []*string{e.State, e.Label, e.ClassName, e.Class} {
		if s != nil {
			return *s
		}
	}
	return types.StateUnknown
}

// score returns the first non-null confidence field in priority order.
func (e *inferEnvelope) score() float64 {
	for _, f := range []*float64{e.StateScore, e.Score, e.Confidence} {
		if f != nil {
			return *f
		}
	}
	return 0
}

// Infer classifies the attentiveness state visible in the frame. The
// returned State is the raw backend label after field-priority extraction;
// semantic normalization happens in the engage client.
func (c *Client) Infer(ctx context.Context, frame *types.Frame, camera types.CameraID, session types.SessionID) (*types.InferenceResult, error) {
	var resp inferEnvelope
	if err := c.postFrame(ctx, "/api/infer", frame, camera, session, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("infer rejected by backend")
	}
	return &types.InferenceResult{
		State: resp.label(),
		Score: resp.score(),
		BBox:  resp.BBox,
	}, nil
}

// PostEvent posts an engagement event envelope.
func (c *Client) PostEvent(ctx context.Context, event *types.EngagementEvent) error {
	var resp struct {
		OK bool `json:"ok"`
	}
	if err := c.postJSON(ctx, "/api/events", event, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("event rejected by backend")
	}
	return nil
}

// StopSession tells the backend the session is over. Best-effort; callers
// log and move on.
func (c *Client) StopSession(ctx context.Context, session types.SessionID) error {
	body := map[string]string{"session_id": string(session)}
	return c.postJSON(ctx, "/stop", body, nil)
}
