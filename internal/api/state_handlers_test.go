package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetState(t *testing.T) {
	ts := setupTestServer(t)
	seedItem(t, ts.store, "cap_a")

	w := ts.do(t, http.MethodGet, "/api/v1/state", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)

	items, ok := data["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestSaveState(t *testing.T) {
	ts := setupTestServer(t)
	seedItem(t, ts.store, "cap_a")

	w := ts.do(t, http.MethodPost, "/api/v1/state/save", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.True(t, env.Success)
}

func TestClearState(t *testing.T) {
	ts := setupTestServer(t)
	seedItem(t, ts.store, "cap_a")

	w := ts.do(t, http.MethodDelete, "/api/v1/state", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, ts.store.Len())
}
