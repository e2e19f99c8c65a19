// Package oauth performs the refresh-token exchange against the posting
// platform's OAuth endpoint.
package oauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	cfg "github.com/maheshrc27/threadflow/configs"
	"github.com/maheshrc27/threadflow/internal/apperrors"
	"golang.org/x/oauth2"
)

// Tokens is the all-or-nothing result of a refresh exchange.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type Provider interface {
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
}

type provider struct {
	conf *oauth2.Config
}

func NewProvider(c cfg.Config) Provider {
	return &provider{
		conf: &oauth2.Config{
			ClientID:     c.OAuth.ClientID,
			ClientSecret: c.OAuth.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: c.OAuth.TokenURL,
			},
		},
	}
}

func (p *provider) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	src := p.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		slog.Info(err.Error())

		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < http.StatusInternalServerError {
			// invalid_grant and friends: the refresh token is revoked or
			// expired, not a transient condition.
			return nil, apperrors.Wrap(apperrors.KindAuthExpired, "refresh token rejected by provider", err)
		}
		return nil, apperrors.Wrap(apperrors.KindTransientNetwork, "token refresh request failed", err)
	}

	// Some providers rotate the refresh token on every exchange and some do
	// not; keep the old one when the response omits it.
	refreshed := tok.RefreshToken
	if refreshed == "" {
		refreshed = refreshToken
	}

	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshed,
		ExpiresAt:    tok.Expiry,
	}, nil
}
