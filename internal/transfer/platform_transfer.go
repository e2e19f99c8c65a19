package transfer

// ThreadEntry is one item of the platform's thread-create payload. Entry
// order is thread order and must match the draft's unit order exactly.
type ThreadEntry struct {
	Text     string   `json:"text"`
	MediaIDs []string `json:"media_ids"`
}

type ThreadCreateRequest struct {
	Entries []ThreadEntry `json:"entries"`
}

type ThreadCreateResponse struct {
	ThreadID string        `json:"thread_id"`
	Error    PlatformError `json:"error"`
}

type MediaUploadResponse struct {
	MediaID string        `json:"media_id"`
	Error   PlatformError `json:"error"`
}

type PlatformError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
