package domain

import "time"

// SeriesStatus controls whether a series is visible to readers.
type SeriesStatus string

const (
	StatusDraft     SeriesStatus = "draft"
	StatusPublished SeriesStatus = "published"
)

// Valid reports whether s is a known status.
func (s SeriesStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

type Series struct {
	ID          string
	Slug        string
	Title       string
	Description *string
	Status      SeriesStatus
	CoverURL    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chapter numbers are real so that interludes like 10.5 sort between whole
// chapters. A chapter is unique per (SeriesID, Number).
type Chapter struct {
	ID        string
	SeriesID  string
	Number    float64
	Title     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Page is one image of a chapter. Index starts at 1.
type Page struct {
	ID        string
	ChapterID string
	Index     int
	ImageKey  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// External reference sources and entities.
const (
	SourceOneManga = "one-manga"

	EntitySeries  = "series"
	EntityChapter = "chapter"
)

// ExternalRef maps a key on a crawled site to a catalog row. SourceKey is
// unique per (Source, Entity).
type ExternalRef struct {
	ID        string
	Source    string
	Entity    string
	SourceKey string
	EntityID  string
	URL       *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Counts is a row count snapshot of the catalog tables.
type Counts struct {
	Series   int64 `json:"series"`
	Chapters int64 `json:"chapters"`
	Pages    int64 `json:"pages"`
}
