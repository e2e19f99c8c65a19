package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/threadflow/internal/apperrors"
	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/platform"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/internal/transfer"
	"golang.org/x/sync/semaphore"
)

// BlobStore is the storage collaborator: grants for direct client uploads,
// whole-object fetch at publish time, delete on detach.
type BlobStore interface {
	IssueUploadGrant(ctx context.Context, key, contentType string) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// StorageKeyFunc mints the opaque object key for a new upload.
type StorageKeyFunc func(userID int64) string

const (
	// unitTransferLimit bounds concurrent two-hop transfers within one
	// materialize call; globalTransferLimit caps transfers across all
	// publishes so the platform and blob store are not flooded.
	unitTransferLimit   = 4
	globalTransferLimit = 16

	storageFetchAttempts = 3
	uploadAttempts       = 3
	transferBackoff      = 200 * time.Millisecond
)

type MediaService interface {
	RequestUploadGrant(ctx context.Context, userID int64, gr *transfer.UploadGrantRequest) (*transfer.UploadGrantResponse, error)
	RecordAttachment(ctx context.Context, userID int64, ar *transfer.AttachmentRequest) (*models.MediaItem, error)
	DeleteAttachment(ctx context.Context, userID int64, storageKey string) error
	// Materialize re-uploads the stored binaries to the platform and returns
	// platform media ids in item order. Ids are never persisted; they are
	// recomputed on every publish attempt.
	Materialize(ctx context.Context, accessToken string, items []*models.MediaItem) ([]string, error)
}

type mediaService struct {
	dr        repository.DraftRepository
	cu        repository.ContentUnitRepository
	mi        repository.MediaItemRepository
	blob      BlobStore
	platform  platform.Client
	newID     IDGenerator
	newKey    StorageKeyFunc
	transfers *semaphore.Weighted
}

func NewMediaService(
	dr repository.DraftRepository,
	cu repository.ContentUnitRepository,
	mi repository.MediaItemRepository,
	blob BlobStore,
	pc platform.Client,
	newID IDGenerator,
	newKey StorageKeyFunc) MediaService {
	return &mediaService{
		dr:        dr,
		cu:        cu,
		mi:        mi,
		blob:      blob,
		platform:  pc,
		newID:     newID,
		newKey:    newKey,
		transfers: semaphore.NewWeighted(globalTransferLimit),
	}
}

func (s *mediaService) RequestUploadGrant(ctx context.Context, userID int64, gr *transfer.UploadGrantRequest) (*transfer.UploadGrantResponse, error) {
	if gr == nil {
		return nil, apperrors.New(apperrors.KindValidation, "grant request is nil")
	}

	unit, err := s.ownedUnit(ctx, userID, gr.UnitID)
	if err != nil {
		return nil, err
	}
	if unit.DraftID != gr.DraftID {
		return nil, apperrors.New(apperrors.KindValidation, "unit does not belong to the draft")
	}

	kind, err := mediaKind(gr.Filename, gr.ContentType)
	if err != nil {
		return nil, err
	}
	if err := checkSizeCeiling(kind, gr.SizeBytes); err != nil {
		return nil, err
	}

	count, err := s.mi.CountByUnitID(ctx, gr.UnitID)
	if err != nil {
		return nil, err
	}
	if count >= models.MaxMediaPerUnit {
		return nil, apperrors.Newf(apperrors.KindValidation, "unit already has %d media items", models.MaxMediaPerUnit)
	}

	key := s.newKey(userID)
	uploadURL, err := s.blob.IssueUploadGrant(ctx, key, gr.ContentType)
	if err != nil {
		return nil, fmt.Errorf("error issuing upload grant: %w", err)
	}

	return &transfer.UploadGrantResponse{
		UploadURL:  uploadURL,
		StorageKey: key,
	}, nil
}

func (s *mediaService) RecordAttachment(ctx context.Context, userID int64, ar *transfer.AttachmentRequest) (*models.MediaItem, error) {
	if ar == nil || ar.StorageKey == "" {
		return nil, apperrors.New(apperrors.KindValidation, "attachment request is incomplete")
	}

	if _, err := s.ownedUnit(ctx, userID, ar.UnitID); err != nil {
		return nil, err
	}

	kind, err := kindFromMime(ar.MimeType)
	if err != nil {
		return nil, err
	}

	// Re-checked here even though the grant already enforced it: the client
	// may hold several unconsumed grants for the same unit.
	count, err := s.mi.CountByUnitID(ctx, ar.UnitID)
	if err != nil {
		return nil, err
	}
	if count >= models.MaxMediaPerUnit {
		return nil, apperrors.Newf(apperrors.KindValidation, "unit already has %d media items", models.MaxMediaPerUnit)
	}

	id, err := s.newID()
	if err != nil {
		return nil, err
	}

	item := models.MediaItem{
		ID:         id,
		UnitID:     ar.UnitID,
		StorageKey: ar.StorageKey,
		MimeType:   ar.MimeType,
		Kind:       kind,
		Position:   count,
	}
	if err := s.mi.Create(ctx, nil, &item); err != nil {
		return nil, fmt.Errorf("error saving media item: %w", err)
	}

	return &item, nil
}

func (s *mediaService) DeleteAttachment(ctx context.Context, userID int64, storageKey string) error {
	item, err := s.mi.GetByStorageKey(ctx, storageKey)
	if err != nil {
		return err
	}
	if item == nil {
		return apperrors.New(apperrors.KindNotFound, "media item does not exist")
	}

	if _, err := s.ownedUnit(ctx, userID, item.UnitID); err != nil {
		return err
	}

	if err := s.mi.RemoveByStorageKey(ctx, storageKey); err != nil {
		return fmt.Errorf("error removing media item: %w", err)
	}

	// Blob cleanup is advisory; an orphaned object is cheaper than a dangling
	// reference.
	if err := s.blob.Delete(ctx, storageKey); err != nil {
		slog.Info("blob delete failed", "storage_key", storageKey, "error", err.Error())
	}

	return nil
}

func (s *mediaService) Materialize(ctx context.Context, accessToken string, items []*models.MediaItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	local := make(chan struct{}, unitTransferLimit)

	for i, item := range items {
		wg.Add(1)
		local <- struct{}{}

		go func(i int, item *models.MediaItem) {
			defer wg.Done()
			defer func() { <-local }()

			if err := s.transfers.Acquire(ctx, 1); err != nil {
				errs[i] = fmt.Errorf("media %s: %w", item.StorageKey, err)
				return
			}
			defer s.transfers.Release(1)

			id, err := s.transferItem(ctx, accessToken, item)
			if err != nil {
				errs[i] = fmt.Errorf("media %s: %w", item.StorageKey, err)
				return
			}
			ids[i] = id
		}(i, item)
	}

	// A failed item does not cancel siblings already in flight; the call
	// settles everything first and then reports every failure.
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return ids, nil
}

// transferItem moves one binary storage -> memory -> platform. Storage
// fetches are retried as transient; a platform rejection reflects the
// content itself and is terminal.
func (s *mediaService) transferItem(ctx context.Context, accessToken string, item *models.MediaItem) (string, error) {
	var data []byte
	var contentType string

	err := retryWithBackoff(ctx, storageFetchAttempts, transferBackoff,
		func(error) bool { return true },
		func() error {
			var ferr error
			data, contentType, ferr = s.blob.Fetch(ctx, item.StorageKey)
			return ferr
		})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindStorageFetch, "could not fetch media from storage", err)
	}

	mimeType := item.MimeType
	if sniffed, serr := filetype.Match(data); serr == nil && sniffed != types.Unknown {
		mimeType = sniffed.MIME.Value
	} else if contentType != "" {
		mimeType = contentType
	}

	var mediaID string
	err = retryWithBackoff(ctx, uploadAttempts, transferBackoff,
		func(err error) bool { return errors.Is(err, apperrors.ErrTransientNetwork) },
		func() error {
			var uerr error
			mediaID, uerr = s.platform.UploadMedia(ctx, data, mimeType, accessToken)
			return uerr
		})
	if err != nil {
		return "", err
	}

	return mediaID, nil
}

func (s *mediaService) ownedUnit(ctx context.Context, userID int64, unitID string) (*models.ContentUnit, error) {
	if unitID == "" {
		return nil, apperrors.New(apperrors.KindValidation, "unit id is empty")
	}

	unit, err := s.cu.GetByID(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "content unit does not exist")
	}

	draft, err := s.dr.GetByID(ctx, unit.DraftID)
	if err != nil {
		return nil, err
	}
	if draft == nil || draft.DeletedAt.Valid {
		return nil, apperrors.New(apperrors.KindNotFound, "draft does not exist")
	}
	if draft.UserID != userID {
		return nil, apperrors.New(apperrors.KindUnauthorized, "draft belongs to another user")
	}
	if draft.Status == models.DraftStatusPosted {
		return nil, apperrors.New(apperrors.KindInvalidTransition, "posted drafts are immutable")
	}

	return unit, nil
}

// mediaKind validates the declared extension and content type together and
// returns image or video.
func mediaKind(filename, contentType string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "", apperrors.New(apperrors.KindValidation, "filename has no extension")
	}

	t := filetype.GetType(ext)
	if t == types.Unknown {
		return "", apperrors.Newf(apperrors.KindValidation, "file type %s is not allowed", ext)
	}

	kind, err := kindFromMime(t.MIME.Value)
	if err != nil {
		return "", err
	}

	declared, err := kindFromMime(contentType)
	if err != nil || declared != kind {
		return "", apperrors.Newf(apperrors.KindValidation, "content type %s does not match file extension", contentType)
	}

	return kind, nil
}

func kindFromMime(mimeType string) (string, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.MediaKindImage, nil
	case strings.HasPrefix(mimeType, "video/"):
		return models.MediaKindVideo, nil
	default:
		return "", apperrors.Newf(apperrors.KindValidation, "unsupported media type %s", mimeType)
	}
}

func checkSizeCeiling(kind string, size int64) error {
	if size <= 0 {
		return apperrors.New(apperrors.KindValidation, "file size must be declared")
	}
	ceiling := models.MaxImageBytes
	if kind == models.MediaKindVideo {
		ceiling = models.MaxVideoBytes
	}
	if size > ceiling {
		return apperrors.Newf(apperrors.KindValidation, "%s exceeds the %d byte limit", kind, ceiling)
	}
	return nil
}
