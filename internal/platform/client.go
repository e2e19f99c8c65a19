// Package platform implements the posting platform's HTTP API: a media upload
// endpoint returning platform media ids, and a thread-create endpoint that
// posts an ordered list of entries atomically on the platform side.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/maheshrc27/threadflow/internal/apperrors"
	"github.com/maheshrc27/threadflow/internal/transfer"
)

type Client interface {
	UploadMedia(ctx context.Context, data []byte, mimeType, accessToken string) (string, error)
	CreateThread(ctx context.Context, entries []transfer.ThreadEntry, accessToken string) (string, error)
}

type httpClient struct {
	baseURL string
	hc      *http.Client
}

func NewClient(baseURL string) Client {
	return &httpClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *httpClient) UploadMedia(ctx context.Context, data []byte, mimeType, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/media/upload", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.hc.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", apperrors.Wrap(apperrors.KindTransientNetwork, "media upload request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", classifyStatus(resp.StatusCode, decodeError(resp.Body))
	}

	var result transfer.MediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", apperrors.Wrap(apperrors.KindTransientNetwork, "malformed media upload response", err)
	}

	return result.MediaID, nil
}

func (c *httpClient) CreateThread(ctx context.Context, entries []transfer.ThreadEntry, accessToken string) (string, error) {
	body, err := json.Marshal(transfer.ThreadCreateRequest{Entries: entries})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/threads", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.hc.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", apperrors.Wrap(apperrors.KindTransientNetwork, "thread create request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", classifyStatus(resp.StatusCode, decodeError(resp.Body))
	}

	var result transfer.ThreadCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", apperrors.Wrap(apperrors.KindTransientNetwork, "malformed thread create response", err)
	}

	return result.ThreadID, nil
}

// decodeError pulls the platform's error payload out of a failed response.
// Error bodies are decoded opportunistically; gateways and proxies can answer
// with HTML, and the status code alone must still classify correctly.
func decodeError(body io.Reader) transfer.PlatformError {
	var result transfer.MediaUploadResponse
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return transfer.PlatformError{}
	}
	return result.Error
}

// classifyStatus splits failed platform responses into retryable transport
// failures (5xx, 429) and terminal content rejections (other 4xx). The
// platform's stated reason is preserved so the caller can surface it, e.g. an
// unsupported video codec.
func classifyStatus(status int, perr transfer.PlatformError) error {
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return apperrors.Newf(apperrors.KindTransientNetwork, "platform returned %d: %s", status, perr.Message)
	case status == http.StatusUnauthorized:
		return apperrors.New(apperrors.KindAuthExpired, "platform rejected access token")
	default:
		msg := perr.Message
		if msg == "" {
			msg = fmt.Sprintf("platform returned %d", status)
		}
		return apperrors.New(apperrors.KindPlatformRejected, msg)
	}
}
