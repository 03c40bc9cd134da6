package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryclip/queryclip-server/internal/domain"
)

func TestResolveDragTowardBack(t *testing.T) {
	items := []domain.Item{testItem("a"), testItem("b"), testItem("c")}

	// Dropping "a" at position 1 of the uncategorized bucket describes the
	// list without "a": position 1 is after "b".
	res, err := ResolveDrag(items, nil, "a", "", 1)
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, []string{"b", "a", "c"}, res.Order)
}

func TestResolveDragTowardFront(t *testing.T) {
	items := []domain.Item{testItem("a"), testItem("b"), testItem("c")}

	res, err := ResolveDrag(items, nil, "c", "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, res.Order)
}

func TestResolveDragCrossChapter(t *testing.T) {
	chapters := []domain.Chapter{chapterFixture("chap-1", "Intro", 0, 0)}
	items := []domain.Item{
		assign(testItem("a"), "chap-1"),
		testItem("b"),
		assign(testItem("c"), "chap-1"),
		testItem("d"),
	}

	// Dragging "b" between the two chapter members lands it at the global
	// slot of the second member, resolved after "b" is lifted out.
	res, err := ResolveDrag(items, chapters, "b", "chap-1", 1)
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, []string{"a", "b", "c", "d"}, res.Order)
	assert.Equal(t, "chap-1", res.ChapterID)
}

func TestResolveDragIntoEmptyChapter(t *testing.T) {
	chapters := []domain.Chapter{chapterFixture("chap-1", "Mid", 0, 1)}
	items := []domain.Item{testItem("a"), testItem("b"), testItem("c")}

	// The empty bucket opens at its insertion anchor; the dragged item
	// becomes the chapter's first member.
	res, err := ResolveDrag(items, chapters, "c", "chap-1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, res.Order)
	assert.Equal(t, "chap-1", res.ChapterID)
}

func TestResolveDragSamePositionIsNoop(t *testing.T) {
	items := []domain.Item{testItem("a"), testItem("b")}

	res, err := ResolveDrag(items, nil, "a", "", 0)
	require.NoError(t, err)
	assert.False(t, res.Moved)
	assert.Equal(t, []string{"a", "b"}, res.Order)
}

func TestResolveDragChapterChangeAloneCountsAsMove(t *testing.T) {
	chapters := []domain.Chapter{chapterFixture("chap-1", "Intro", 0, 0)}
	items := []domain.Item{testItem("a")}

	// Same flat position but a different chapter is still a move.
	res, err := ResolveDrag(items, chapters, "a", "chap-1", 0)
	require.NoError(t, err)
	assert.True(t, res.Moved)
}

func TestResolveDragRejectsPromptResponse(t *testing.T) {
	items := []domain.Item{testPromptItem("p"), testItem("a")}

	_, err := ResolveDrag(items, nil, "p", "", 1)
	assert.Error(t, err)
}

func TestResolveDragUnknownItem(t *testing.T) {
	_, err := ResolveDrag([]domain.Item{testItem("a")}, nil, "ghost", "", 0)
	assert.Error(t, err)
}

func TestMoveItemCommitsOrderAndChapter(t *testing.T) {
	s := setupTestStore(t, 50)
	front := domain.UncategorizedIndex
	ch, err := s.AddChapter(domain.Chapter{ID: "chap-1", Title: "Intro", AnchorTimestamp: 0}, &front)
	require.NoError(t, err)
	_, err = s.Append(testItem("a"), testItem("b"), testItem("c"))
	require.NoError(t, err)

	res, err := s.MoveItem("c", ch.ID, 0)
	require.NoError(t, err)
	require.True(t, res.Moved)

	moved, ok := s.Item("c")
	require.True(t, ok)
	assert.Equal(t, ch.ID, moved.ChapterID)
	assert.Equal(t, res.Order, ids(s.Items()))
}

func TestMoveItemNoopSkipsSync(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"), testItem("b"))
	require.NoError(t, err)

	rec := &recordingNotifier{}
	s.SetSyncNotifier(rec)

	res, err := s.MoveItem("a", "", 0)
	require.NoError(t, err)
	assert.False(t, res.Moved)
	assert.Empty(t, rec.snaps)
}

func TestMoveItemUnknownChapter(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"))
	require.NoError(t, err)

	_, err = s.MoveItem("a", "chap-ghost", 0)
	assert.Error(t, err)
}

func TestMoveItemPreservesIDMultiset(t *testing.T) {
	s := setupTestStore(t, 50)
	_, err := s.Append(testItem("a"), testItem("b"), testItem("c"), testItem("d"))
	require.NoError(t, err)

	before := ids(s.Items())
	_, err = s.MoveItem("b", "", 3)
	require.NoError(t, err)

	after := ids(s.Items())
	assert.ElementsMatch(t, before, after)
}
