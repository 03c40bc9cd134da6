package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryclip/queryclip-server/internal/domain"
)

func chapterFixture(id, title string, anchor float64, insertAt int) domain.Chapter {
	return domain.Chapter{
		ID:                   id,
		Title:                title,
		AnchorTimestamp:      anchor,
		InsertionAnchorIndex: insertAt,
	}
}

func assign(item domain.Item, chapterID string) domain.Item {
	item.ChapterID = chapterID
	return item
}

func TestViewGroupsByChapterInCollectionOrder(t *testing.T) {
	items := []domain.Item{
		assign(testItem("a"), "chap-1"),
		testItem("b"),
		assign(testItem("c"), "chap-1"),
		testItem("d"),
	}
	chapters := []domain.Chapter{chapterFixture("chap-1", "Intro", 5, 0)}

	v := NewView(items, chapters)
	buckets := v.Buckets()
	require.Len(t, buckets, 2)

	// Uncategorized first, then chapters by anchor.
	assert.Empty(t, buckets[0].ChapterID)
	assert.Equal(t, []string{"b", "d"}, bucketIDs(buckets[0]))
	assert.Equal(t, "chap-1", buckets[1].ChapterID)
	assert.Equal(t, []string{"a", "c"}, bucketIDs(buckets[1]))

	// Each entry carries its flat-collection index.
	assert.Equal(t, 0, buckets[1].Entries[0].GlobalIndex)
	assert.Equal(t, 2, buckets[1].Entries[1].GlobalIndex)
}

func TestViewOrdersChaptersByAnchor(t *testing.T) {
	chapters := []domain.Chapter{
		chapterFixture("chap-late", "Outro", 300, 0),
		chapterFixture("chap-early", "Intro", 10, 0),
	}
	v := NewView(nil, chapters)

	buckets := v.Buckets()
	require.Len(t, buckets, 3)
	assert.Equal(t, "chap-early", buckets[1].ChapterID)
	assert.Equal(t, "chap-late", buckets[2].ChapterID)
}

func TestViewShowsEmptyChapters(t *testing.T) {
	v := NewView(nil, []domain.Chapter{chapterFixture("chap-1", "Intro", 0, 0)})

	buckets := v.Buckets()
	require.Len(t, buckets, 2)
	assert.Empty(t, buckets[1].Entries)
}

func TestGlobalInsertIndexWithinBucket(t *testing.T) {
	items := []domain.Item{
		testItem("a"),
		assign(testItem("b"), "chap-1"),
		testItem("c"),
		assign(testItem("d"), "chap-1"),
	}
	v := NewView(items, []domain.Chapter{chapterFixture("chap-1", "Intro", 0, 0)})

	// Local position 0 lands where the first member sits.
	at, err := v.GlobalInsertIndex("chap-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, at)

	// Local position 1 lands where the second member sits.
	at, err = v.GlobalInsertIndex("chap-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, at)
}

func TestGlobalInsertIndexBeyondBucketAppends(t *testing.T) {
	items := []domain.Item{
		assign(testItem("a"), "chap-1"),
		testItem("b"),
	}
	v := NewView(items, []domain.Chapter{chapterFixture("chap-1", "Intro", 0, 0)})

	// Positions at or past the bucket length mean "after the last member".
	at, err := v.GlobalInsertIndex("chap-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, at)

	at, err = v.GlobalInsertIndex("chap-1", 99)
	require.NoError(t, err)
	assert.Equal(t, 1, at)
}

func TestGlobalInsertIndexEmptyBucketUsesAnchor(t *testing.T) {
	items := []domain.Item{testItem("a"), testItem("b"), testItem("c")}
	v := NewView(items, []domain.Chapter{chapterFixture("chap-1", "Mid", 0, 2)})

	at, err := v.GlobalInsertIndex("chap-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, at)

	// Anchors beyond the current length clamp to append.
	v = NewView(items, []domain.Chapter{chapterFixture("chap-1", "Far", 0, 40)})
	at, err = v.GlobalInsertIndex("chap-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, at)
}

func TestGlobalInsertIndexEmptyUncategorized(t *testing.T) {
	items := []domain.Item{assign(testItem("a"), "chap-1")}
	v := NewView(items, []domain.Chapter{chapterFixture("chap-1", "Intro", 0, 0)})

	at, err := v.GlobalInsertIndex("", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, at)
}

func TestGlobalInsertIndexUnknownChapter(t *testing.T) {
	v := NewView(nil, nil)
	_, err := v.GlobalInsertIndex("chap-ghost", 0)
	assert.Error(t, err)
}

func bucketIDs(b Bucket) []string {
	out := make([]string, len(b.Entries))
	for i := range b.Entries {
		out[i] = b.Entries[i].Item.ID
	}
	return out
}
