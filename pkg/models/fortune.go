package models

import "time"

type Fortune string

type UserAnswers struct {
	Color string `json:"color" form:"color"`
	Mood  string `json:"mood" form:"mood"`
	Dream string `json:"dream" form:"dream"`
}

// Any reports whether at least one answer was given.
func (a UserAnswers) Any() bool {
	return a.Color != "" || a.Mood != "" || a.Dream != ""
}

type CapturePath string

const (
	CapturePrimary  CapturePath = "primary"
	CaptureFallback CapturePath = "fallback"
)

// CapturedImage holds the same raster in two encodings.
type CapturedImage struct {
	DataURL     string      `json:"dataUrl"`
	Blob        []byte      `json:"-"`
	ContentType string      `json:"contentType"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Path        CapturePath `json:"path"`
}

type ShareURL string

type ShareStatus string

const (
	SharePublished ShareStatus = "published"
	ShareAnnounced ShareStatus = "announced"
)

type ShareRecord struct {
	Token       string      `json:"token" db:"token"`
	ObjectKey   string      `json:"object_key" db:"object_key"`
	URL         string      `json:"url" db:"url"`
	ContentType string      `json:"content_type" db:"content_type"`
	Size        int64       `json:"size" db:"size"`
	Status      ShareStatus `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}
