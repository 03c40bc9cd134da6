// Package domain contains the core business entities for the QueryClip capture collection.
package domain

import (
	"fmt"
	"time"
)

// Kind discriminates the item variants in the collection.
type Kind string

// Item kinds.
const (
	KindScreenshot     Kind = "screenshot"
	KindAnimation      Kind = "animation"
	KindPromptResponse Kind = "prompt_response"
)

// Valid reports whether k is a known item kind.
func (k Kind) Valid() bool {
	switch k {
	case KindScreenshot, KindAnimation, KindPromptResponse:
		return true
	default:
		return false
	}
}

// Item is one captured artifact or prompt response in the collection.
// It is a tagged union: Kind selects exactly one of the payload pointers.
type Item struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	// Timestamp is the position in the source video, in seconds. For prompt
	// responses it is the position at the moment the question was asked.
	Timestamp float64 `json:"timestamp"`
	// ChapterID references the owning chapter; empty means uncategorized.
	ChapterID string `json:"chapter_id,omitempty"`
	Notes     string `json:"notes,omitempty"`

	Screenshot     *ScreenshotPayload     `json:"screenshot,omitempty"`
	Animation      *AnimationPayload      `json:"animation,omitempty"`
	PromptResponse *PromptResponsePayload `json:"prompt_response,omitempty"`
}

// ScreenshotPayload holds screenshot-specific data.
type ScreenshotPayload struct {
	// ImageData is a data URL (data:image/png;base64,...) or, after a
	// degraded save, empty with Placeholder set instead.
	ImageData   string            `json:"image_data,omitempty"`
	Caption     string            `json:"caption,omitempty"`
	Context     string            `json:"context,omitempty"` // transcript context around the timestamp
	Label       *Label            `json:"label,omitempty"`
	Placeholder *ImagePlaceholder `json:"placeholder,omitempty"`
}

// AnimationPayload holds GIF animation data.
type AnimationPayload struct {
	GIFData     string            `json:"gif_data,omitempty"` // data URL
	Caption     string            `json:"caption,omitempty"`
	Duration    float64           `json:"duration"` // seconds
	FPS         int               `json:"fps,omitempty"`
	Width       int               `json:"width,omitempty"`
	Placeholder *ImagePlaceholder `json:"placeholder,omitempty"`
}

// PromptResponsePayload holds a question asked about the video and its answer.
type PromptResponsePayload struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Label is an optional text overlay burned into a capture.
type Label struct {
	Text     string `json:"text"`
	FontSize int    `json:"font_size"`
	Color    string `json:"color"` // defaults to white when empty
}

// ImagePlaceholder is a compact stand-in for stripped image data.
// BlurHash renders a recognizable preview in ~30 bytes.
type ImagePlaceholder struct {
	BlurHash string `json:"blur_hash"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Validate checks the tagged-union invariant: exactly one payload matching Kind.
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item has no id")
	}
	if !i.Kind.Valid() {
		return fmt.Errorf("item %s: unknown kind %q", i.ID, i.Kind)
	}

	switch i.Kind {
	case KindScreenshot:
		if i.Screenshot == nil {
			return fmt.Errorf("item %s: screenshot kind without screenshot payload", i.ID)
		}
	case KindAnimation:
		if i.Animation == nil {
			return fmt.Errorf("item %s: animation kind without animation payload", i.ID)
		}
	case KindPromptResponse:
		if i.PromptResponse == nil {
			return fmt.Errorf("item %s: prompt_response kind without prompt payload", i.ID)
		}
	}
	return nil
}

// Draggable reports whether the item participates in drag reordering.
// Prompt responses are pinned to their capture position.
func (i *Item) Draggable() bool {
	return i.Kind != KindPromptResponse
}

// Caption returns the caption text for kinds that carry one.
func (i *Item) Caption() string {
	switch i.Kind {
	case KindScreenshot:
		if i.Screenshot != nil {
			return i.Screenshot.Caption
		}
	case KindAnimation:
		if i.Animation != nil {
			return i.Animation.Caption
		}
	case KindPromptResponse:
		if i.PromptResponse != nil {
			return i.PromptResponse.Response
		}
	}
	return ""
}

// SetCaption updates the caption text on the active payload and reports
// whether the edit was applied. Prompt responses refuse the edit: their
// text is immutable after capture.
func (i *Item) SetCaption(caption string) bool {
	switch i.Kind {
	case KindScreenshot:
		if i.Screenshot != nil {
			i.Screenshot.Caption = caption
		}
		return true
	case KindAnimation:
		if i.Animation != nil {
			i.Animation.Caption = caption
		}
		return true
	default:
		return false
	}
}

// PayloadSize returns the approximate encoded size of the item's media payload.
func (i *Item) PayloadSize() int {
	switch i.Kind {
	case KindScreenshot:
		if i.Screenshot != nil {
			return len(i.Screenshot.ImageData)
		}
	case KindAnimation:
		if i.Animation != nil {
			return len(i.Animation.GIFData)
		}
	case KindPromptResponse:
		if i.PromptResponse != nil {
			return len(i.PromptResponse.Prompt) + len(i.PromptResponse.Response)
		}
	}
	return 0
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() Item {
	out := *i
	if i.Screenshot != nil {
		ss := *i.Screenshot
		if i.Screenshot.Label != nil {
			l := *i.Screenshot.Label
			ss.Label = &l
		}
		if i.Screenshot.Placeholder != nil {
			p := *i.Screenshot.Placeholder
			ss.Placeholder = &p
		}
		out.Screenshot = &ss
	}
	if i.Animation != nil {
		an := *i.Animation
		if i.Animation.Placeholder != nil {
			p := *i.Animation.Placeholder
			an.Placeholder = &p
		}
		out.Animation = &an
	}
	if i.PromptResponse != nil {
		pr := *i.PromptResponse
		out.PromptResponse = &pr
	}
	return out
}

// ItemPatch is a partial update applied to an existing item.
// Nil fields are left unchanged. ChapterID uses a double pointer so the
// patch can distinguish "leave alone" (nil) from "clear" (pointer to empty).
type ItemPatch struct {
	Caption   *string
	Notes     *string
	ChapterID *string
}
