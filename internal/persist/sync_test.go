package persist

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryclip/queryclip-server/internal/cache"
	"github.com/queryclip/queryclip-server/internal/collection"
	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
)

// fakeDurable is an in-memory DurableStore with failure injection.
type fakeDurable struct {
	mu        sync.Mutex
	saved     []*domain.Snapshot
	state     *domain.Snapshot
	failSaves int
	cleared   bool
}

func (f *fakeDurable) SaveState(_ context.Context, snap *domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves > 0 {
		f.failSaves--
		return qerrors.Transient("injected failure")
	}
	f.state = snap.Clone()
	f.saved = append(f.saved, f.state)
	return nil
}

func (f *fakeDurable) LoadState(context.Context) (*domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		return nil, qerrors.NotFound("no saved state")
	}
	return f.state.Clone(), nil
}

func (f *fakeDurable) ClearState(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = nil
	f.cleared = true
	return nil
}

func (f *fakeDurable) Close() error { return nil }

func (f *fakeDurable) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (f *fakeDurable) lastSaved() *domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil
	}
	return f.saved[len(f.saved)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func setupSync(t *testing.T, debounce time.Duration) (*Sync, *collection.Store, *cache.Cache, *fakeDurable) {
	t.Helper()

	store := collection.New(50, testLogger(), collection.NewNoopEmitter())
	c, err := cache.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	durable := &fakeDurable{}
	s := New(store, c, durable, debounce, testLogger(), collection.NewNoopEmitter())
	s.backoffBase = 5 * time.Millisecond
	store.SetSyncNotifier(s)
	t.Cleanup(func() { s.Close() })

	return s, store, c, durable
}

func screenshotItem(id string) domain.Item {
	return domain.Item{
		ID:        id,
		Kind:      domain.KindScreenshot,
		Timestamp: 1,
		Screenshot: &domain.ScreenshotPayload{
			ImageData: "data:image/png;base64,aGk=",
		},
	}
}

func TestMutationWritesLocalTierImmediately(t *testing.T) {
	_, store, c, _ := setupSync(t, time.Hour)

	_, err := store.Append(screenshotItem("cap-1"))
	require.NoError(t, err)

	snap, degraded, err := c.LoadSnapshot()
	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, 1, snap.ItemCount())
}

func TestDebounceCollapsesBurst(t *testing.T) {
	_, store, _, durable := setupSync(t, 40*time.Millisecond)

	_, err := store.Append(screenshotItem("cap-1"))
	require.NoError(t, err)
	_, err = store.Append(screenshotItem("cap-2"))
	require.NoError(t, err)
	_, err = store.Append(screenshotItem("cap-3"))
	require.NoError(t, err)

	// Before the window elapses nothing has been sent.
	assert.Equal(t, 0, durable.saveCount())

	require.Eventually(t, func() bool {
		return durable.saveCount() == 1
	}, time.Second, 10*time.Millisecond)

	// The single save carries the final state of the burst.
	assert.Equal(t, 3, durable.lastSaved().ItemCount())
}

func TestDebounceWindowRestartsOnNewMutations(t *testing.T) {
	_, store, _, durable := setupSync(t, 60*time.Millisecond)

	_, err := store.Append(screenshotItem("cap-1"))
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	_, err = store.Append(screenshotItem("cap-2"))
	require.NoError(t, err)

	// 30ms after the second append the original window would have fired,
	// but the restart holds the save back.
	time.Sleep(35 * time.Millisecond)
	assert.Equal(t, 0, durable.saveCount())

	require.Eventually(t, func() bool {
		return durable.saveCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestTransientSaveFailuresAreRetried(t *testing.T) {
	s, store, _, durable := setupSync(t, time.Hour)
	durable.failSaves = 2

	_, err := store.Append(screenshotItem("cap-1"))
	require.NoError(t, err)

	require.NoError(t, s.SaveNow(context.Background()))
	assert.Equal(t, 1, durable.saveCount())
}

func TestSaveNowBypassesDebounce(t *testing.T) {
	s, store, _, durable := setupSync(t, time.Hour)

	_, err := store.Append(screenshotItem("cap-1"))
	require.NoError(t, err)

	require.NoError(t, s.SaveNow(context.Background()))
	assert.Equal(t, 1, durable.saveCount())
	assert.Equal(t, 1, durable.lastSaved().ItemCount())
}

func TestCloseFlushesPendingSave(t *testing.T) {
	s, store, _, durable := setupSync(t, time.Hour)

	_, err := store.Append(screenshotItem("cap-1"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, durable.saveCount())
}

func TestClearEmptiesBothTiers(t *testing.T) {
	s, store, c, durable := setupSync(t, time.Hour)

	_, err := store.Append(screenshotItem("cap-1"))
	require.NoError(t, err)
	require.NoError(t, s.SaveNow(context.Background()))

	require.NoError(t, s.Clear(context.Background()))

	_, _, err = c.LoadSnapshot()
	assert.ErrorIs(t, err, qerrors.ErrNotFound)
	assert.True(t, durable.cleared)
}

func TestReconcilePrefersLargerLocalState(t *testing.T) {
	s, store, c, durable := setupSync(t, time.Hour)

	local := &domain.Snapshot{Items: []domain.Item{screenshotItem("cap-1"), screenshotItem("cap-2")}}
	require.NoError(t, c.SaveSnapshot(local, false))
	durable.state = &domain.Snapshot{Items: []domain.Item{screenshotItem("cap-1")}}

	require.NoError(t, s.Reconcile(context.Background()))

	assert.Equal(t, 2, store.Len())
	// The richer local state is pushed through to the durable tier.
	assert.Equal(t, 2, durable.lastSaved().ItemCount())
}

func TestReconcilePrefersLargerDurableState(t *testing.T) {
	s, store, c, durable := setupSync(t, time.Hour)

	require.NoError(t, c.SaveSnapshot(&domain.Snapshot{Items: []domain.Item{screenshotItem("cap-1")}}, false))
	durable.state = &domain.Snapshot{Items: []domain.Item{
		screenshotItem("cap-1"), screenshotItem("cap-2"), screenshotItem("cap-3"),
	}}

	require.NoError(t, s.Reconcile(context.Background()))

	assert.Equal(t, 3, store.Len())
	// The local mirror catches up to the durable tier.
	snap, _, err := c.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, 3, snap.ItemCount())
}

func TestReconcileTieGoesToDurable(t *testing.T) {
	s, store, c, durable := setupSync(t, time.Hour)

	localOnly := &domain.Snapshot{VideoID: "local", Items: []domain.Item{screenshotItem("cap-1")}}
	require.NoError(t, c.SaveSnapshot(localOnly, false))
	durable.state = &domain.Snapshot{VideoID: "durable", Items: []domain.Item{screenshotItem("cap-1")}}

	require.NoError(t, s.Reconcile(context.Background()))

	videoID, _ := store.VideoContext()
	assert.Equal(t, "durable", videoID)
}

func TestReconcileWithNoSavedState(t *testing.T) {
	s, store, _, _ := setupSync(t, time.Hour)

	require.NoError(t, s.Reconcile(context.Background()))
	assert.Equal(t, 0, store.Len())
}

func TestReconcileLocalOnly(t *testing.T) {
	s, store, c, _ := setupSync(t, time.Hour)

	require.NoError(t, c.SaveSnapshot(&domain.Snapshot{Items: []domain.Item{screenshotItem("cap-1")}}, false))

	require.NoError(t, s.Reconcile(context.Background()))
	assert.Equal(t, 1, store.Len())
}

func TestDegradeStripsMediaPayloads(t *testing.T) {
	snap := &domain.Snapshot{Items: []domain.Item{
		{
			ID:        "cap-1",
			Kind:      domain.KindScreenshot,
			Timestamp: 1,
			Screenshot: &domain.ScreenshotPayload{
				ImageData: "data:image/png;base64,bm90LWFuLWltYWdl",
				Caption:   "keep me",
			},
		},
		{
			ID:        "note-1",
			Kind:      domain.KindPromptResponse,
			Timestamp: 2,
			PromptResponse: &domain.PromptResponsePayload{
				Prompt:   "q",
				Response: "a",
			},
		},
	}}

	out := Degrade(snap, testLogger())

	assert.Empty(t, out.Items[0].Screenshot.ImageData)
	assert.Equal(t, "keep me", out.Items[0].Screenshot.Caption)
	// Prompt responses carry no media and pass through untouched.
	assert.Equal(t, "a", out.Items[1].PromptResponse.Response)
	// The original is untouched.
	assert.NotEmpty(t, snap.Items[0].Screenshot.ImageData)
}
