package collection

import (
	"time"

	"github.com/queryclip/queryclip-server/internal/domain"
	qerrors "github.com/queryclip/queryclip-server/internal/errors"
	"github.com/queryclip/queryclip-server/internal/sse"
)

// AddChapter registers a new chapter. The anchor pins where the chapter's
// bucket begins in the canonical order: nil means after everything currently
// present, domain.UncategorizedIndex means before everything, and an explicit
// index (zero included) is kept as given. Uncategorized items at or past the
// anchor become members of the new chapter in the same mutation, so creating
// "Intro" before index 1 pulls items 1..n under it immediately.
func (s *Store) AddChapter(ch domain.Chapter, anchor *int) (domain.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = now
	}
	ch.UpdatedAt = now

	if anchor != nil {
		ch.InsertionAnchorIndex = *anchor
	} else {
		ch.InsertionAnchorIndex = len(s.items)
	}

	if err := ch.Validate(); err != nil {
		return domain.Chapter{}, qerrors.ValidationWithDetails("invalid chapter", map[string]string{"reason": err.Error()})
	}
	if s.chapterIndexLocked(ch.ID) >= 0 {
		return domain.Chapter{}, qerrors.Conflict("chapter already exists")
	}

	s.chapters = append(s.chapters, ch)

	from := ch.InsertionAnchorIndex
	if from < 0 {
		from = 0
	}
	for j := from; j < len(s.items); j++ {
		if s.items[j].ChapterID != "" {
			continue
		}
		s.items[j].ChapterID = ch.ID
		member := s.items[j].Clone()
		s.indexAsync(&member)
		s.emit(sse.NewItemUpdatedEvent(&member, j))
	}

	out := ch
	s.emit(sse.NewChapterCreatedEvent(&out))
	s.notifySyncLocked()
	return out, nil
}

// UpdateChapter applies a patch to the chapter with the given id.
// Updating an unknown chapter returns false without error.
func (s *Store) UpdateChapter(id string, patch domain.ChapterPatch) (domain.Chapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.chapterIndexLocked(id)
	if i < 0 {
		return domain.Chapter{}, false
	}

	ch := &s.chapters[i]
	if patch.Title != nil {
		ch.Title = *patch.Title
	}
	if patch.AnchorTimestamp != nil {
		ch.AnchorTimestamp = *patch.AnchorTimestamp
	}
	ch.UpdatedAt = time.Now()

	out := *ch
	s.emit(sse.NewChapterUpdatedEvent(&out))
	s.notifySyncLocked()
	return out, true
}

// DeleteChapter removes the chapter and clears the chapter assignment of
// every member item in the same mutation, so no observer ever sees an item
// pointing at a chapter that no longer exists. Deleting an unknown chapter
// returns false without error.
func (s *Store) DeleteChapter(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.chapterIndexLocked(id)
	if i < 0 {
		return false
	}

	s.chapters = append(s.chapters[:i], s.chapters[i+1:]...)

	var cleared []string
	for j := range s.items {
		if s.items[j].ChapterID == id {
			s.items[j].ChapterID = ""
			cleared = append(cleared, s.items[j].ID)
		}
	}

	if s.logger != nil && len(cleared) > 0 {
		s.logger.Info("chapter deleted, members moved to uncategorized",
			"chapter_id", id, "cleared_items", len(cleared))
	}

	s.emit(sse.NewChapterDeletedEvent(id, cleared))
	s.notifySyncLocked()
	return true
}

// Chapter returns a copy of the chapter with the given id, or false if absent.
func (s *Store) Chapter(id string) (domain.Chapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.chapterIndexLocked(id); i >= 0 {
		return s.chapters[i], true
	}
	return domain.Chapter{}, false
}
