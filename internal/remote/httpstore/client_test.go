package httpstore

import (
	"context"
	"encoding/json/v2"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
)

func TestSaveAndLoadState(t *testing.T) {
	var stored []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/state", r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			stored = body
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			if stored == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(stored)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	defer c.Close()

	snap := &domain.Snapshot{VideoID: "vid-1"}
	require.NoError(t, c.SaveState(context.Background(), snap))

	loaded, err := c.LoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "vid-1", loaded.VideoID)
}

func TestLoadStateNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	defer c.Close()

	_, err := c.LoadState(context.Background())
	assert.ErrorIs(t, err, qerrors.ErrNotFound)
}

func TestServerErrorsAreTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	defer c.Close()

	err := c.SaveState(context.Background(), &domain.Snapshot{})
	require.Error(t, err)
	assert.True(t, qerrors.IsTransient(err))
}

func TestOversizedSnapshotIsPayloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	defer c.Close()

	err := c.SaveState(context.Background(), &domain.Snapshot{})
	require.Error(t, err)
	assert.ErrorIs(t, err, qerrors.ErrPayloadTooLarge)
	assert.False(t, qerrors.IsTransient(err))
}

func TestClientErrorsArePermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	defer c.Close()

	err := c.SaveState(context.Background(), &domain.Snapshot{})
	require.Error(t, err)
	assert.False(t, qerrors.IsTransient(err))
}

func TestUnreachableServiceIsTransient(t *testing.T) {
	// Reserved TEST-NET address; connection refused or timeout either way.
	c := New("http://127.0.0.1:1", nil)
	defer c.Close()

	err := c.ClearState(context.Background())
	require.Error(t, err)
	assert.True(t, qerrors.IsTransient(err))
}

func TestClearState(t *testing.T) {
	deleted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete && r.URL.Path == "/state" {
			deleted = true
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	defer c.Close()

	require.NoError(t, c.ClearState(context.Background()))
	assert.True(t, deleted)
}

func TestSaveStateSendsJSON(t *testing.T) {
	var gotContentType string
	var got domain.Snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.UnmarshalRead(r.Body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	defer c.Close()

	require.NoError(t, c.SaveState(context.Background(), &domain.Snapshot{VideoID: "vid-9"}))
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "vid-9", got.VideoID)
}
