package models

import "time"

type MediaItem struct {
	ID         string    `db:"id" json:"id"`
	UnitID     string    `db:"unit_id" json:"unit_id"`
	StorageKey string    `db:"storage_key" json:"storage_key"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	Kind       string    `db:"kind" json:"kind"` // image, video
	Position   int       `db:"position" json:"position"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

const (
	MediaKindImage = "image"
	MediaKindVideo = "video"
)

// MaxMediaPerUnit is the platform's carousel limit. A fifth attachment is
// rejected, never truncated.
const MaxMediaPerUnit = 4

const (
	MaxImageBytes int64 = 8 << 20
	MaxVideoBytes int64 = 512 << 20
)
