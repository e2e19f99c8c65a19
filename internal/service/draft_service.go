package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/threadflow/internal/apperrors"
	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IDGenerator produces identifiers for new entities. Injected so tests can
// build deterministic sequences.
type IDGenerator func() (string, error)

// Clock is injected wherever time is validated or stamped.
type Clock func() time.Time

func NanoidGenerator() (string, error) { return gonanoid.New() }

type DraftService interface {
	Create(ctx context.Context, userID int64, dc *transfer.DraftCreation) (*models.Draft, error)
	Get(ctx context.Context, userID int64, draftID string) (*models.Draft, error)
	List(ctx context.Context, userID int64) ([]*models.Draft, error)
	Update(ctx context.Context, userID int64, draftID string, du *transfer.DraftUpdate) (*models.Draft, error)
	SoftDelete(ctx context.Context, userID int64, draftID string) error
	SetStatus(ctx context.Context, draftID, status string, scheduledFor, postedAt *time.Time) (*models.Draft, error)
}

type draftService struct {
	db    *sql.DB
	dr    repository.DraftRepository
	cu    repository.ContentUnitRepository
	mi    repository.MediaItemRepository
	newID IDGenerator
	now   Clock
}

func NewDraftService(
	db *sql.DB,
	dr repository.DraftRepository,
	cu repository.ContentUnitRepository,
	mi repository.MediaItemRepository,
	newID IDGenerator,
	now Clock) DraftService {
	return &draftService{
		db:    db,
		dr:    dr,
		cu:    cu,
		mi:    mi,
		newID: newID,
		now:   now,
	}
}

func (s *draftService) Create(ctx context.Context, userID int64, dc *transfer.DraftCreation) (*models.Draft, error) {
	if dc == nil {
		return nil, apperrors.New(apperrors.KindValidation, "draft payload is nil")
	}
	if err := validateUnits(dc.Units); err != nil {
		return nil, err
	}

	draftID, err := s.newID()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	draft := models.Draft{
		ID:     draftID,
		UserID: userID,
		Status: models.DraftStatusDraft,
	}
	if err = s.dr.Create(ctx, tx, &draft); err != nil {
		return nil, fmt.Errorf("error creating draft: %w", err)
	}

	for i, up := range dc.Units {
		unitID := up.ID
		if unitID == "" {
			unitID, err = s.newID()
			if err != nil {
				return nil, err
			}
		}
		unit := models.ContentUnit{
			ID:       unitID,
			DraftID:  draftID,
			Position: i,
			Body:     up.Body,
		}
		if err = s.cu.Create(ctx, tx, &unit); err != nil {
			return nil, fmt.Errorf("error saving content unit: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.load(ctx, draftID)
}

func (s *draftService) Get(ctx context.Context, userID int64, draftID string) (*models.Draft, error) {
	if _, err := s.ownedDraft(ctx, userID, draftID); err != nil {
		return nil, err
	}
	return s.load(ctx, draftID)
}

func (s *draftService) List(ctx context.Context, userID int64) ([]*models.Draft, error) {
	drafts, err := s.dr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing drafts: %w", err)
	}
	return drafts, nil
}

func (s *draftService) Update(ctx context.Context, userID int64, draftID string, du *transfer.DraftUpdate) (*models.Draft, error) {
	draft, err := s.ownedDraft(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Status == models.DraftStatusPosted {
		return nil, apperrors.New(apperrors.KindInvalidTransition, "posted drafts are immutable")
	}
	if du == nil {
		return nil, apperrors.New(apperrors.KindValidation, "draft payload is nil")
	}
	if err := validateUnits(du.Units); err != nil {
		return nil, err
	}

	units := make([]*models.ContentUnit, 0, len(du.Units))
	for i, up := range du.Units {
		unitID := up.ID
		if unitID == "" {
			unitID, err = s.newID()
			if err != nil {
				return nil, err
			}
		}
		units = append(units, &models.ContentUnit{
			ID:       unitID,
			DraftID:  draftID,
			Position: i,
			Body:     up.Body,
		})
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.cu.ReplaceForDraft(ctx, tx, draftID, units); err != nil {
		return nil, fmt.Errorf("error replacing content units: %w", err)
	}
	if err = s.dr.Touch(ctx, tx, draftID, s.now()); err != nil {
		return nil, fmt.Errorf("error touching draft: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.load(ctx, draftID)
}

// SoftDelete tombstones the draft. A second delete of the same draft is a
// no-op, not an error.
func (s *draftService) SoftDelete(ctx context.Context, userID int64, draftID string) error {
	draft, err := s.dr.GetByID(ctx, draftID)
	if err != nil {
		return err
	}
	if draft == nil {
		return apperrors.New(apperrors.KindNotFound, "draft does not exist")
	}
	if draft.UserID != userID {
		return apperrors.New(apperrors.KindUnauthorized, "draft belongs to another user")
	}
	if draft.DeletedAt.Valid {
		return nil
	}
	if draft.Status == models.DraftStatusPosted {
		return apperrors.New(apperrors.KindInvalidTransition, "posted drafts cannot be deleted")
	}

	if err := s.dr.SoftDelete(ctx, draftID, s.now()); err != nil {
		return fmt.Errorf("error deleting draft: %w", err)
	}

	return nil
}

// SetStatus applies a lifecycle transition. Owner scoping is the caller's
// responsibility; this is the single place the state machine is enforced.
func (s *draftService) SetStatus(ctx context.Context, draftID, status string, scheduledFor, postedAt *time.Time) (*models.Draft, error) {
	draft, err := s.dr.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil || draft.DeletedAt.Valid {
		return nil, apperrors.New(apperrors.KindNotFound, "draft does not exist")
	}
	if !canTransition(draft.Status, status) {
		return nil, apperrors.Newf(apperrors.KindInvalidTransition, "cannot transition %s draft to %s", draft.Status, status)
	}

	// Posted drafts never keep a schedule; at most one of the two markers is
	// set at a time.
	if status == models.DraftStatusPosted {
		scheduledFor = nil
	}
	if status != models.DraftStatusPosted {
		postedAt = nil
	}

	if err := s.dr.SetStatus(ctx, draftID, status, scheduledFor, postedAt); err != nil {
		return nil, fmt.Errorf("error updating draft status: %w", err)
	}

	return s.load(ctx, draftID)
}

// canTransition encodes the draft lifecycle. Rescheduling an already
// scheduled draft stays in scheduled with a new time; posted is terminal.
func canTransition(from, to string) bool {
	switch from {
	case models.DraftStatusDraft:
		return to == models.DraftStatusScheduled || to == models.DraftStatusPosted
	case models.DraftStatusScheduled:
		return to == models.DraftStatusScheduled || to == models.DraftStatusPosted || to == models.DraftStatusDraft
	default:
		return false
	}
}

func (s *draftService) ownedDraft(ctx context.Context, userID int64, draftID string) (*models.Draft, error) {
	if draftID == "" {
		return nil, apperrors.New(apperrors.KindValidation, "draft id is empty")
	}

	draft, err := s.dr.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil || draft.DeletedAt.Valid {
		return nil, apperrors.New(apperrors.KindNotFound, "draft does not exist")
	}
	if draft.UserID != userID {
		slog.Info("draft ownership check failed", "draft_id", draftID, "user_id", userID)
		return nil, apperrors.New(apperrors.KindUnauthorized, "draft belongs to another user")
	}

	return draft, nil
}

func (s *draftService) load(ctx context.Context, draftID string) (*models.Draft, error) {
	draft, err := s.dr.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "draft does not exist")
	}

	units, err := s.cu.ListByDraftID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		media, err := s.mi.ListByUnitID(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		u.Media = media
	}
	draft.Units = units

	return draft, nil
}

func validateUnits(units []transfer.UnitPayload) error {
	if len(units) == 0 {
		return apperrors.New(apperrors.KindValidation, "draft needs at least one content unit")
	}
	if len(units) > models.MaxUnitsPerDraft {
		return apperrors.Newf(apperrors.KindValidation, "draft exceeds %d content units", models.MaxUnitsPerDraft)
	}
	for i, u := range units {
		if utf8.RuneCountInString(u.Body) > models.MaxUnitLength {
			return apperrors.Newf(apperrors.KindValidation, "unit text exceeds %d characters", models.MaxUnitLength).AtUnit(i)
		}
	}
	return nil
}
