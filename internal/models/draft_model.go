package models

import (
	"database/sql"
	"time"
)

type Draft struct {
	ID           string         `db:"id" json:"id"`
	UserID       int64          `db:"user_id" json:"user_id"`
	Status       string         `db:"status" json:"status"` // draft, scheduled, posted
	ScheduledFor sql.NullTime   `db:"scheduled_for" json:"scheduled_for"`
	PostedAt     sql.NullTime   `db:"posted_at" json:"posted_at"`
	DeletedAt    sql.NullTime   `db:"deleted_at" json:"-"`
	Units        []*ContentUnit `db:"-" json:"units"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

type ContentUnit struct {
	ID       string       `db:"id" json:"id"`
	DraftID  string       `db:"draft_id" json:"draft_id"`
	Position int          `db:"position" json:"position"`
	Body     string       `db:"body" json:"body"`
	Media    []*MediaItem `db:"-" json:"media"`
}

const (
	DraftStatusDraft     = "draft"
	DraftStatusScheduled = "scheduled"
	DraftStatusPosted    = "posted"
)

// MaxUnitsPerDraft bounds how many segments a single thread may carry.
const MaxUnitsPerDraft = 25

// MaxUnitLength is the per-unit body limit in runes. It applies to every
// account; there is no verified-account exemption.
const MaxUnitLength = 500
