package api

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/queryclip/queryclip-server/internal/cache"
	"github.com/queryclip/queryclip-server/internal/capture"
	"github.com/queryclip/queryclip-server/internal/collection"
	"github.com/queryclip/queryclip-server/internal/domain"
	"github.com/queryclip/queryclip-server/internal/http/response"
	"github.com/queryclip/queryclip-server/internal/id"
	"github.com/queryclip/queryclip-server/internal/persist"
	"github.com/queryclip/queryclip-server/internal/remote/sqlitestore"
	"github.com/queryclip/queryclip-server/internal/search"
	"github.com/queryclip/queryclip-server/internal/sse"
)

// stubCapturer returns a fixed screenshot item for every request.
type stubCapturer struct{}

func (stubCapturer) Capture(_ context.Context, req capture.Request) (*domain.Item, error) {
	return &domain.Item{
		ID:        id.MustGenerate(id.PrefixCapture),
		Kind:      domain.KindScreenshot,
		Timestamp: req.Timestamp,
		Screenshot: &domain.ScreenshotPayload{
			ImageData: "data:image/png;base64,Zmravc3RvdA==",
		},
	}, nil
}

type testServer struct {
	server *Server
	store  *collection.Store
	sync   *persist.Sync
}

// setupTestServer creates a test server with all dependencies on temp storage.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sseManager := sse.NewManager(logger)
	sseHandler := sse.NewHandler(sseManager, logger)

	store := collection.New(50, logger, sseManager)

	localCache, err := cache.Open(filepath.Join(tmpDir, "cache"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = localCache.Close() })

	durable, err := sqlitestore.Open(filepath.Join(tmpDir, "state.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = durable.Close() })

	syncer := persist.New(store, localCache, durable, 50*time.Millisecond, logger, sseManager)
	store.SetSyncNotifier(syncer)
	t.Cleanup(func() { _ = syncer.Close() })

	searchIndex, err := search.NewSearchIndex(search.Options{
		DataPath: filepath.Join(tmpDir, "search"),
		Logger:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = searchIndex.Close() })
	store.SetSearchIndexer(searchIndex)

	orchestrator := capture.NewOrchestrator(stubCapturer{}, store, time.Millisecond, time.Second, logger, sseManager)
	t.Cleanup(func() { _ = orchestrator.Close() })

	server := NewServer(store, syncer, orchestrator, searchIndex, sseHandler, logger)

	return &testServer{server: server, store: store, sync: syncer}
}

// do performs a request against the test server and returns the recorder.
func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)
	return w
}

// decodeEnvelope unmarshals the response envelope.
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

// seedItem appends a screenshot item directly through the store.
func seedItem(t *testing.T, store *collection.Store, itemID string) domain.Item {
	t.Helper()

	accepted, err := store.Append(domain.Item{
		ID:        itemID,
		Kind:      domain.KindScreenshot,
		Timestamp: 10,
		Screenshot: &domain.ScreenshotPayload{
			ImageData: "data:image/png;base64,Zm9v",
			Caption:   "a red bridge at sunset",
		},
	})
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	return accepted[0]
}
