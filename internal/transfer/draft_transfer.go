package transfer

// UnitPayload is one thread segment as submitted by the composer UI. ID is
// optional on create; when present it must be the stable unit id so autosave
// echoes correlate with local edits.
type UnitPayload struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

type DraftCreation struct {
	Units []UnitPayload `json:"units"`
}

type DraftUpdate struct {
	Units []UnitPayload `json:"units"`
}

type ScheduleRequest struct {
	DraftID string `json:"draft_id"`
	At      string `json:"at"` // RFC 3339
}

type PublishRequest struct {
	DraftID string `json:"draft_id"`
}

type UploadGrantRequest struct {
	DraftID     string `json:"draft_id"`
	UnitID      string `json:"unit_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type UploadGrantResponse struct {
	UploadURL  string `json:"upload_url"`
	StorageKey string `json:"storage_key"`
}

type AttachmentRequest struct {
	UnitID     string `json:"unit_id"`
	StorageKey string `json:"storage_key"`
	MimeType   string `json:"mime_type"`
}

type DetachmentRequest struct {
	StorageKey string `json:"storage_key"`
}
