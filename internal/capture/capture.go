// Package capture acquires media from the capture service and orchestrates
// batch capture runs against the collection.
package capture

import (
	"context"

	"github.com/queryclip/queryclip-server/internal/domain"
)

// Request describes one capture to perform.
type Request struct {
	// VideoID is the video to capture from.
	VideoID string
	// Timestamp is the playhead position in seconds.
	Timestamp float64
	// Kind selects screenshot or animation capture.
	Kind domain.Kind

	// GenerateCaption asks the capture service to caption the frame.
	GenerateCaption bool
	// Context is transcript text around the timestamp, used for captioning.
	Context string
	// CustomPrompt overrides the default captioning prompt.
	CustomPrompt string
	// Label is burned into the frame when set.
	Label *domain.Label

	// Animation parameters; ignored for screenshots. Zero values fall back
	// to the capture service defaults.
	Duration float64
	FPS      int
	Width    int
}

// Capturer performs a single capture against the capture service.
type Capturer interface {
	Capture(ctx context.Context, req Request) (*domain.Item, error)
}
