package models

import "time"

// OAuthCredential holds the posting platform tokens for one user. The token
// columns are AES-GCM encrypted at rest; repositories store and return the
// ciphertext untouched.
type OAuthCredential struct {
	UserID       int64     `db:"user_id" json:"user_id"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	NeedsReauth  bool      `db:"needs_reauth" json:"needs_reauth"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
