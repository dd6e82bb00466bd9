// Package models holds the read-side row shapes the Refresh Loop
// queries against tables this subsystem does not own
// (user/reading), kept separate from internal/catalog's write-side domain
// model.
package models

import "time"

// PriorityManga is one row of the Refresh Loop's priority query (§4.I):
// a manga with at least one reader, ordered by reader count descending.
type PriorityManga struct {
	MangaID      int64
	URL          string
	Title        string
	ReaderCount  int
	ChapterCount int
	UpdatedAt    time.Time
}

// Reader is one (user, device token) pair currently reading a manga, used
// to build the notification fan-out after a refresh detects new chapters.
type Reader struct {
	UserID      int64
	DeviceToken string
}
