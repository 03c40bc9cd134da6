package capture

import (
	"context"
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
)

func TestCaptureScreenshot(t *testing.T) {
	var got screenshotRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/capture-screenshot", r.URL.Path)
		require.NoError(t, json.UnmarshalRead(r.Body, &got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"image_data":"data:image/webp;base64,aGk=","timestamp":42.5,"caption":"a chart"}`))
	}))
	defer srv.Close()

	c := NewHTTPCapturer(srv.URL, nil)
	item, err := c.Capture(context.Background(), Request{
		VideoID:         "vid-1",
		Timestamp:       42.5,
		Kind:            domain.KindScreenshot,
		GenerateCaption: true,
		Context:         "transcript text",
		Label:           &domain.Label{Text: "Key moment", FontSize: 48, Color: "white"},
	})
	require.NoError(t, err)

	assert.Equal(t, "vid-1", got.VideoID)
	assert.True(t, got.GenerateCaption)
	require.NotNil(t, got.Label)
	assert.Equal(t, "Key moment", got.Label.Text)

	assert.Equal(t, domain.KindScreenshot, item.Kind)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, 42.5, item.Timestamp)
	assert.Equal(t, "data:image/webp;base64,aGk=", item.Screenshot.ImageData)
	assert.Equal(t, "a chart", item.Screenshot.Caption)
	assert.Equal(t, "transcript text", item.Screenshot.Context)
	require.NotNil(t, item.Screenshot.Label)
}

func TestCaptureScreenshotToleratesCaptionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"image_data":"data:image/webp;base64,aGk=","caption_error":"model unavailable"}`))
	}))
	defer srv.Close()

	c := NewHTTPCapturer(srv.URL, nil)
	item, err := c.Capture(context.Background(), Request{VideoID: "vid-1", Kind: domain.KindScreenshot})
	require.NoError(t, err)
	assert.Empty(t, item.Screenshot.Caption)
	assert.NotEmpty(t, item.Screenshot.ImageData)
}

func TestCaptureAnimation(t *testing.T) {
	var got gifRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/capture-gif", r.URL.Path)
		require.NoError(t, json.UnmarshalRead(r.Body, &got))
		w.Write([]byte(`{"gif_data":"data:image/gif;base64,aGk="}`))
	}))
	defer srv.Close()

	c := NewHTTPCapturer(srv.URL, nil)
	item, err := c.Capture(context.Background(), Request{
		VideoID:   "vid-1",
		Timestamp: 30,
		Kind:      domain.KindAnimation,
		Duration:  3,
		FPS:       10,
		Width:     480,
	})
	require.NoError(t, err)

	assert.Equal(t, 30.0, got.StartTime)
	assert.Equal(t, 3.0, got.Duration)

	assert.Equal(t, domain.KindAnimation, item.Kind)
	assert.Equal(t, "data:image/gif;base64,aGk=", item.Animation.GIFData)
	assert.Equal(t, 10, item.Animation.FPS)
}

func TestCaptureRejectsPromptResponseKind(t *testing.T) {
	c := NewHTTPCapturer("http://localhost:0", nil)
	_, err := c.Capture(context.Background(), Request{Kind: domain.KindPromptResponse})
	assert.Error(t, err)
}

func TestCaptureServiceErrorsClassified(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"server error is transient", http.StatusInternalServerError, true},
		{"throttled is transient", http.StatusTooManyRequests, true},
		{"bad request is permanent", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewHTTPCapturer(srv.URL, nil)
			_, err := c.Capture(context.Background(), Request{VideoID: "vid-1", Kind: domain.KindScreenshot})
			require.Error(t, err)
			assert.Equal(t, tt.transient, qerrors.IsTransient(err))
		})
	}
}

func TestCaptureEmptyImageDataIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"timestamp":1}`))
	}))
	defer srv.Close()

	c := NewHTTPCapturer(srv.URL, nil)
	_, err := c.Capture(context.Background(), Request{VideoID: "vid-1", Kind: domain.KindScreenshot})
	assert.Error(t, err)
}
