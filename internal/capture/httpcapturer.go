package capture

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
	"github.com/queryclip/queryclip-server/internal/id"
)

const defaultClientTimeout = 60 * time.Second

// HTTPCapturer talks to the capture service over HTTP.
type HTTPCapturer struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPCapturer creates a capturer against the service at baseURL.
func NewHTTPCapturer(baseURL string, logger *slog.Logger) *HTTPCapturer {
	return &HTTPCapturer{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: defaultClientTimeout,
		},
		logger: logger,
	}
}

type labelPayload struct {
	Text     string `json:"text"`
	FontSize int    `json:"fontSize"`
	Color    string `json:"color"`
}

type screenshotRequest struct {
	VideoID         string        `json:"video_id"`
	Timestamp       float64       `json:"timestamp"`
	GenerateCaption bool          `json:"generate_caption"`
	Context         string        `json:"context,omitempty"`
	CustomPrompt    string        `json:"custom_prompt,omitempty"`
	Label           *labelPayload `json:"label,omitempty"`
}

type screenshotResponse struct {
	ImageData    string  `json:"image_data"`
	Timestamp    float64 `json:"timestamp"`
	Caption      string  `json:"caption"`
	CaptionError string  `json:"caption_error"`
}

type gifRequest struct {
	VideoID   string  `json:"video_id"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration,omitempty"`
	FPS       int     `json:"fps,omitempty"`
	Width     int     `json:"width,omitempty"`
}

type gifResponse struct {
	GIFData string `json:"gif_data"`
}

// Capture performs one capture and returns the resulting collection item.
func (c *HTTPCapturer) Capture(ctx context.Context, req Request) (*domain.Item, error) {
	switch req.Kind {
	case domain.KindScreenshot:
		return c.captureScreenshot(ctx, req)
	case domain.KindAnimation:
		return c.captureAnimation(ctx, req)
	default:
		return nil, qerrors.Validationf("kind %q is not capturable", req.Kind)
	}
}

func (c *HTTPCapturer) captureScreenshot(ctx context.Context, req Request) (*domain.Item, error) {
	payload := screenshotRequest{
		VideoID:         req.VideoID,
		Timestamp:       req.Timestamp,
		GenerateCaption: req.GenerateCaption,
		Context:         req.Context,
		CustomPrompt:    req.CustomPrompt,
	}
	if req.Label != nil {
		payload.Label = &labelPayload{
			Text:     req.Label.Text,
			FontSize: req.Label.FontSize,
			Color:    req.Label.Color,
		}
	}

	var resp screenshotResponse
	if err := c.post(ctx, "/api/capture-screenshot", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ImageData == "" {
		return nil, qerrors.Internal("capture service returned no image data")
	}
	if resp.CaptionError != "" && c.logger != nil {
		c.logger.Warn("capture succeeded but captioning failed",
			"video_id", req.VideoID, "timestamp", req.Timestamp, "error", resp.CaptionError)
	}

	item := &domain.Item{
		ID:        id.MustGenerate(id.PrefixCapture),
		Kind:      domain.KindScreenshot,
		Timestamp: req.Timestamp,
		CreatedAt: time.Now(),
		Screenshot: &domain.ScreenshotPayload{
			ImageData: resp.ImageData,
			Caption:   resp.Caption,
			Context:   req.Context,
		},
	}
	if req.Label != nil {
		item.Screenshot.Label = req.Label
	}
	return item, nil
}

func (c *HTTPCapturer) captureAnimation(ctx context.Context, req Request) (*domain.Item, error) {
	payload := gifRequest{
		VideoID:   req.VideoID,
		StartTime: req.Timestamp,
		Duration:  req.Duration,
		FPS:       req.FPS,
		Width:     req.Width,
	}

	var resp gifResponse
	if err := c.post(ctx, "/api/capture-gif", payload, &resp); err != nil {
		return nil, err
	}
	if resp.GIFData == "" {
		return nil, qerrors.Internal("capture service returned no gif data")
	}

	return &domain.Item{
		ID:        id.MustGenerate(id.PrefixCapture),
		Kind:      domain.KindAnimation,
		Timestamp: req.Timestamp,
		CreatedAt: time.Now(),
		Animation: &domain.AnimationPayload{
			GIFData:  resp.GIFData,
			Duration: req.Duration,
			FPS:      req.FPS,
			Width:    req.Width,
		},
	}, nil
}

func (c *HTTPCapturer) post(ctx context.Context, path string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal capture request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "QueryClip/1.0")

	if c.logger != nil {
		c.logger.Debug("capture service request", "path", path)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return qerrors.Transient("capture service unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return qerrors.Transient("read capture service response").WithCause(err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return qerrors.Transientf("capture service returned %d", resp.StatusCode)
	default:
		return qerrors.Internalf("capture service returned %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("unmarshal capture response: %w", err)
	}
	return nil
}
