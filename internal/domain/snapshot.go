package domain

import "time"

// Snapshot is the persistence unit: the full collection state plus the
// video context it belongs to. Both the local cache and the durable store
// hold whole snapshots; the derived chapter index is never persisted.
type Snapshot struct {
	SavedAt        time.Time `json:"saved_at"`
	VideoID        string    `json:"video_id,omitempty"`
	VideoTimestamp float64   `json:"video_timestamp,omitempty"`
	Items          []Item    `json:"items"`
	Chapters       []Chapter `json:"chapters"`
}

// ItemCount returns the number of items in the snapshot.
// Used by the load-time reconciliation heuristic.
func (s *Snapshot) ItemCount() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		SavedAt:        s.SavedAt,
		VideoID:        s.VideoID,
		VideoTimestamp: s.VideoTimestamp,
		Items:          make([]Item, 0, len(s.Items)),
		Chapters:       make([]Chapter, len(s.Chapters)),
	}
	for i := range s.Items {
		out.Items = append(out.Items, s.Items[i].Clone())
	}
	copy(out.Chapters, s.Chapters)
	return out
}

// Validate checks snapshot-wide invariants: unique item ids and chapter
// references that resolve to an existing chapter.
func (s *Snapshot) Validate() error {
	chapterIDs := make(map[string]bool, len(s.Chapters))
	for i := range s.Chapters {
		if err := s.Chapters[i].Validate(); err != nil {
			return err
		}
		chapterIDs[s.Chapters[i].ID] = true
	}

	seen := make(map[string]bool, len(s.Items))
	for i := range s.Items {
		item := &s.Items[i]
		if err := item.Validate(); err != nil {
			return err
		}
		if seen[item.ID] {
			return &DuplicateIDError{ID: item.ID}
		}
		seen[item.ID] = true
		if item.ChapterID != "" && !chapterIDs[item.ChapterID] {
			return &DanglingChapterError{ItemID: item.ID, ChapterID: item.ChapterID}
		}
	}
	return nil
}

// DuplicateIDError reports a snapshot containing the same item id twice.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return "duplicate item id: " + e.ID
}

// DanglingChapterError reports an item referencing a missing chapter.
type DanglingChapterError struct {
	ItemID    string
	ChapterID string
}

func (e *DanglingChapterError) Error() string {
	return "item " + e.ItemID + " references missing chapter " + e.ChapterID
}
