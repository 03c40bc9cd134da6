package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/queryclip/queryclip-server/internal/capture"
	"github.com/queryclip/queryclip-server/internal/domain"
	"github.com/queryclip/queryclip-server/internal/http/response"
)

// CaptureRequest describes one capture to perform.
type CaptureRequest struct {
	VideoID   string  `json:"video_id" validate:"required"`
	Timestamp float64 `json:"timestamp" validate:"gte=0"`
	Kind      string  `json:"kind" validate:"required,oneof=screenshot animation"`

	GenerateCaption bool   `json:"generate_caption"`
	Context         string `json:"context"`
	CustomPrompt    string `json:"custom_prompt"`

	Label *LabelRequest `json:"label"`

	// Animation parameters; ignored for screenshots.
	Duration float64 `json:"duration" validate:"gte=0,lte=30"`
	FPS      int     `json:"fps" validate:"gte=0,lte=30"`
	Width    int     `json:"width" validate:"gte=0,lte=1920"`
}

// LabelRequest is an optional text label burned into the captured frame.
type LabelRequest struct {
	Text     string `json:"text" validate:"required,max=100"`
	FontSize int    `json:"font_size" validate:"gte=0,lte=96"`
	Color    string `json:"color"`
}

func (req *CaptureRequest) toCaptureRequest() capture.Request {
	out := capture.Request{
		VideoID:         req.VideoID,
		Timestamp:       req.Timestamp,
		Kind:            domain.Kind(req.Kind),
		GenerateCaption: req.GenerateCaption,
		Context:         req.Context,
		CustomPrompt:    req.CustomPrompt,
		Duration:        req.Duration,
		FPS:             req.FPS,
		Width:           req.Width,
	}
	if req.Label != nil {
		out.Label = &domain.Label{
			Text:     req.Label.Text,
			FontSize: req.Label.FontSize,
			Color:    req.Label.Color,
		}
	}
	return out
}

// BatchStartedResponse acknowledges an accepted capture run.
type BatchStartedResponse struct {
	BatchID string `json:"batch_id"`
	Mode    string `json:"mode"`
	Total   int    `json:"total"`
}

// handleCapture starts a single capture. The result lands in the collection
// asynchronously; progress is reported over the event stream.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	batchID, err := s.orchestrator.Run(capture.ModeSingle, []capture.Request{req.toCaptureRequest()})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Accepted(w, BatchStartedResponse{
		BatchID: batchID,
		Mode:    string(capture.ModeSingle),
		Total:   1,
	}, s.logger)
}

// BatchCaptureRequest starts a burst or marked capture run.
//
// Burst mode expands count/interval from a start point into evenly spaced
// captures; marked mode takes the explicit list of marks the user queued.
type BatchCaptureRequest struct {
	Mode string `json:"mode" validate:"required,oneof=burst marked"`

	// Burst parameters.
	VideoID   string          `json:"video_id"`
	StartTime float64         `json:"start_time" validate:"gte=0"`
	Count     int             `json:"count" validate:"gte=0,lte=50"`
	Interval  float64         `json:"interval" validate:"gte=0,lte=60"`
	Template  *CaptureRequest `json:"template"`

	// Marked parameters.
	Marks []CaptureRequest `json:"marks" validate:"dive"`
}

// handleBatchCapture starts a burst or marked run.
func (s *Server) handleBatchCapture(w http.ResponseWriter, r *http.Request) {
	var req BatchCaptureRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	mode := capture.Mode(req.Mode)

	var requests []capture.Request
	switch mode {
	case capture.ModeBurst:
		if req.VideoID == "" {
			response.BadRequest(w, "video_id is required for burst capture", s.logger)
			return
		}
		if req.Count < 1 {
			response.BadRequest(w, "count must be at least 1 for burst capture", s.logger)
			return
		}
		interval := req.Interval
		if interval <= 0 {
			interval = 1
		}
		requests = make([]capture.Request, 0, req.Count)
		for i := range req.Count {
			var cr capture.Request
			if req.Template != nil {
				cr = req.Template.toCaptureRequest()
			} else {
				cr = capture.Request{Kind: domain.KindScreenshot}
			}
			cr.VideoID = req.VideoID
			cr.Timestamp = req.StartTime + float64(i)*interval
			requests = append(requests, cr)
		}

	case capture.ModeMarked:
		for _, mark := range req.Marks {
			if err := s.validator.Validate(mark); err != nil {
				response.HandleError(w, err, s.logger)
				return
			}
			requests = append(requests, mark.toCaptureRequest())
		}

	default:
		response.BadRequest(w, "Unknown batch mode", s.logger)
		return
	}

	batchID, err := s.orchestrator.Run(mode, requests)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Accepted(w, BatchStartedResponse{
		BatchID: batchID,
		Mode:    string(mode),
		Total:   len(requests),
	}, s.logger)
}

// handleBatchStatus returns the current batch run status.
func (s *Server) handleBatchStatus(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.orchestrator.Status(), s.logger)
}

// handleCancelBatch cancels the running batch between items. Items already
// committed stay in the collection.
func (s *Server) handleCancelBatch(w http.ResponseWriter, _ *http.Request) {
	s.orchestrator.Cancel()
	response.NoContent(w)
}
