package collection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryclip/queryclip-server/internal/domain"
)

// Helper to build a screenshot item with a given id.
func testItem(id string) domain.Item {
	return domain.Item{
		ID:        id,
		Kind:      domain.KindScreenshot,
		Timestamp: 12.5,
		Screenshot: &domain.ScreenshotPayload{
			ImageData: "data:image/png;base64,iVBORw0KGgo=",
			Caption:   "caption for " + id,
		},
	}
}

func testPromptItem(id string) domain.Item {
	return domain.Item{
		ID:        id,
		Kind:      domain.KindPromptResponse,
		Timestamp: 30,
		PromptResponse: &domain.PromptResponsePayload{
			Prompt:   "what is on screen?",
			Response: "a chart",
		},
	}
}

func setupTestStore(t *testing.T, maxItems int) *Store {
	t.Helper()
	return New(maxItems, nil, NewNoopEmitter())
}

func ids(items []domain.Item) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].ID
	}
	return out
}

func TestAppendPreservesOrder(t *testing.T) {
	s := setupTestStore(t, 50)

	accepted, err := s.Append(testItem("a"), testItem("b"))
	require.NoError(t, err)
	require.Len(t, accepted, 2)

	_, err = s.Append(testItem("c"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Items()))
}

func TestAppendEvictsOldest(t *testing.T) {
	s := setupTestStore(t, 2)

	_, err := s.Append(testItem("a"), testItem("b"))
	require.NoError(t, err)

	accepted, err := s.Append(testItem("c"))
	require.NoError(t, err)
	require.Len(t, accepted, 1)

	// Oldest item drops off the front; order of survivors is unchanged.
	assert.Equal(t, []string{"b", "c"}, ids(s.Items()))
}

func TestAppendBatchLargerThanCapacity(t *testing.T) {
	s := setupTestStore(t, 2)

	accepted, err := s.Append(testItem("a"), testItem("b"), testItem("c"), testItem("d"))
	require.NoError(t, err)

	// Only the tail of the batch survives and only survivors are accepted.
	assert.Equal(t, []string{"c", "d"}, ids(s.Items()))
	assert.Equal(t, []string{"c", "d"}, ids(accepted))
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	s := setupTestStore(t, 50)

	_, err := s.Append(testItem("a"))
	require.NoError(t, err)

	_, err = s.Append(testItem("a"))
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestAppendRejectsUnknownChapter(t *testing.T) {
	s := setupTestStore(t, 50)

	item := testItem("a")
	item.ChapterID = "chap-missing"
	_, err := s.Append(item)
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"), testItem("b"))
	require.NoError(t, err)

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.False(t, s.Remove("never-existed"))
	assert.Equal(t, []string{"b"}, ids(s.Items()))
}

func TestUpdateUnknownIDIsSilentNoop(t *testing.T) {
	s := setupTestStore(t, 50)

	caption := "new caption"
	_, ok, err := s.Update("ghost", domain.ItemPatch{Caption: &caption})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdatePatchesMetadata(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"))
	require.NoError(t, err)

	ch, err := s.AddChapter(domain.Chapter{ID: "chap-1", Title: "Intro", AnchorTimestamp: 5}, nil)
	require.NoError(t, err)

	caption := "updated"
	notes := "some notes"
	chapterID := ch.ID
	updated, ok, err := s.Update("a", domain.ItemPatch{Caption: &caption, Notes: &notes, ChapterID: &chapterID})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "updated", updated.Screenshot.Caption)
	assert.Equal(t, "some notes", updated.Notes)
	assert.Equal(t, "chap-1", updated.ChapterID)

	// Pointer to empty string clears the assignment.
	uncategorized := ""
	updated, ok, err = s.Update("a", domain.ItemPatch{ChapterID: &uncategorized})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, updated.ChapterID)
}

func TestUpdateRejectsUnknownChapter(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"))
	require.NoError(t, err)

	missing := "chap-missing"
	_, _, err = s.Update("a", domain.ItemPatch{ChapterID: &missing})
	assert.Error(t, err)
}

func TestUpdateRejectsPromptCaptionEdits(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testPromptItem("p"))
	require.NoError(t, err)

	caption := "rewritten"
	_, _, err = s.Update("p", domain.ItemPatch{Caption: &caption})
	assert.Error(t, err)
}

func TestReorderToAppliesPermutation(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"), testItem("b"), testItem("c"))
	require.NoError(t, err)

	require.NoError(t, s.ReorderTo([]string{"c", "a", "b"}))
	assert.Equal(t, []string{"c", "a", "b"}, ids(s.Items()))
}

func TestReorderToRejectsUnknownAndDuplicateIDs(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"), testItem("b"))
	require.NoError(t, err)

	assert.Error(t, s.ReorderTo([]string{"a", "ghost"}))
	assert.Error(t, s.ReorderTo([]string{"a", "a"}))
	// Failed reorders leave the collection untouched.
	assert.Equal(t, []string{"a", "b"}, ids(s.Items()))
}

func TestReorderToDropsOmittedIDs(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"), testItem("b"), testItem("c"))
	require.NoError(t, err)

	require.NoError(t, s.ReorderTo([]string{"c", "a"}))
	assert.Equal(t, []string{"c", "a"}, ids(s.Items()))
}

func TestDeleteChapterClearsMembers(t *testing.T) {
	s := setupTestStore(t, 50)
	ch, err := s.AddChapter(domain.Chapter{ID: "chap-1", Title: "Intro", AnchorTimestamp: 0}, nil)
	require.NoError(t, err)

	a := testItem("a")
	a.ChapterID = ch.ID
	b := testItem("b")
	b.ChapterID = ch.ID
	_, err = s.Append(a, b, testItem("c"))
	require.NoError(t, err)

	require.True(t, s.DeleteChapter(ch.ID))

	// Items survive but are uncategorized, and no item references the
	// deleted chapter at any observable point.
	for _, item := range s.Items() {
		assert.Empty(t, item.ChapterID)
	}
	assert.Empty(t, s.Chapters())
	assert.False(t, s.DeleteChapter(ch.ID))
}

func TestAddChapterGroupsItemsPastAnchor(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"), testItem("b"), testItem("c"))
	require.NoError(t, err)

	// Creating "Intro" anchored before index 1 pulls everything from "b"
	// onward under it; "a" stays uncategorized.
	anchor := 1
	ch, err := s.AddChapter(domain.Chapter{ID: "chap-intro", Title: "Intro", AnchorTimestamp: 20}, &anchor)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.InsertionAnchorIndex)

	view := s.GroupedView()
	uncategorized, ok := view.Bucket("")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, bucketIDs(uncategorized))

	intro, ok := view.Bucket(ch.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "c"}, bucketIDs(intro))
}

func TestAddChapterExplicitAnchorZero(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"), testItem("b"))
	require.NoError(t, err)

	// An explicit zero is a pinned position, not "omitted": the anchor
	// survives as given and every item joins the chapter.
	anchor := 0
	ch, err := s.AddChapter(domain.Chapter{ID: "chap-all", Title: "All", AnchorTimestamp: 0}, &anchor)
	require.NoError(t, err)
	assert.Equal(t, 0, ch.InsertionAnchorIndex)

	for _, item := range s.Items() {
		assert.Equal(t, ch.ID, item.ChapterID)
	}
}

func TestAddChapterOmittedAnchorTakesNoMembers(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"), testItem("b"))
	require.NoError(t, err)

	ch, err := s.AddChapter(domain.Chapter{ID: "chap-later", Title: "Later", AnchorTimestamp: 99}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ch.InsertionAnchorIndex)

	for _, item := range s.Items() {
		assert.Empty(t, item.ChapterID)
	}
}

func TestAddChapterLeavesAssignedItemsAlone(t *testing.T) {
	s := setupTestStore(t, 50)
	first, err := s.AddChapter(domain.Chapter{ID: "chap-1", Title: "Intro", AnchorTimestamp: 0}, nil)
	require.NoError(t, err)

	a := testItem("a")
	a.ChapterID = first.ID
	_, err = s.Append(a, testItem("b"))
	require.NoError(t, err)

	front := domain.UncategorizedIndex
	second, err := s.AddChapter(domain.Chapter{ID: "chap-2", Title: "Deep Dive", AnchorTimestamp: 50}, &front)
	require.NoError(t, err)

	// Only the uncategorized item moves; "a" keeps its chapter.
	moved, ok := s.Item("b")
	require.True(t, ok)
	assert.Equal(t, second.ID, moved.ChapterID)

	kept, ok := s.Item("a")
	require.True(t, ok)
	assert.Equal(t, first.ID, kept.ChapterID)
}

func TestUpdateChapter(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.AddChapter(domain.Chapter{ID: "chap-1", Title: "Intro", AnchorTimestamp: 10}, nil)
	require.NoError(t, err)

	title := "Renamed"
	anchor := 42.0
	ch, ok := s.UpdateChapter("chap-1", domain.ChapterPatch{Title: &title, AnchorTimestamp: &anchor})
	require.True(t, ok)
	assert.Equal(t, "Renamed", ch.Title)
	assert.Equal(t, 42.0, ch.AnchorTimestamp)

	_, ok = s.UpdateChapter("ghost", domain.ChapterPatch{Title: &title})
	assert.False(t, ok)
}

func TestClearResetsEverything(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.AddChapter(domain.Chapter{ID: "chap-1", Title: "Intro"}, nil)
	require.NoError(t, err)
	_, err = s.Append(testItem("a"))
	require.NoError(t, err)
	s.SetVideoContext("vid-1", 33)

	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Chapters())
	videoID, ts := s.VideoContext()
	assert.Empty(t, videoID)
	assert.Zero(t, ts)
}

func TestLoadSnapshotReplacesState(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("old"))
	require.NoError(t, err)

	snap := &domain.Snapshot{
		VideoID:  "vid-2",
		Items:    []domain.Item{testItem("x"), testItem("y")},
		Chapters: []domain.Chapter{{ID: "chap-1", Title: "Intro"}},
	}
	require.NoError(t, s.LoadSnapshot(snap))

	assert.Equal(t, []string{"x", "y"}, ids(s.Items()))
	videoID, _ := s.VideoContext()
	assert.Equal(t, "vid-2", videoID)
}

func TestLoadSnapshotTrimsOverCapacity(t *testing.T) {
	s := setupTestStore(t, 3)

	snap := &domain.Snapshot{}
	for i := 0; i < 5; i++ {
		snap.Items = append(snap.Items, testItem(fmt.Sprintf("item-%d", i)))
	}
	require.NoError(t, s.LoadSnapshot(snap))

	// The newest items win the trim.
	assert.Equal(t, []string{"item-2", "item-3", "item-4"}, ids(s.Items()))
}

func TestLoadSnapshotRejectsInvalid(t *testing.T) {
	s := setupTestStore(t, 50)

	dup := &domain.Snapshot{Items: []domain.Item{testItem("a"), testItem("a")}}
	assert.Error(t, s.LoadSnapshot(dup))
}

// recordingNotifier captures sync notifications for assertions.
type recordingNotifier struct {
	snaps []*domain.Snapshot
}

func (r *recordingNotifier) CollectionChanged(snap *domain.Snapshot) {
	r.snaps = append(r.snaps, snap)
}

func TestMutationsNotifySync(t *testing.T) {
	s := setupTestStore(t, 50)
	rec := &recordingNotifier{}
	s.SetSyncNotifier(rec)

	_, err := s.Append(testItem("a"))
	require.NoError(t, err)
	s.Remove("a")

	require.Len(t, rec.snaps, 2)
	assert.Len(t, rec.snaps[0].Items, 1)
	assert.Len(t, rec.snaps[1].Items, 0)
}

func TestLoadSnapshotDoesNotNotifySync(t *testing.T) {
	s := setupTestStore(t, 50)
	rec := &recordingNotifier{}
	s.SetSyncNotifier(rec)

	require.NoError(t, s.LoadSnapshot(&domain.Snapshot{Items: []domain.Item{testItem("a")}}))
	assert.Empty(t, rec.snaps)
}
