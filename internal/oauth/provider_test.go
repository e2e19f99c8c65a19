package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cfg "github.com/maheshrc27/threadflow/configs"
	"github.com/maheshrc27/threadflow/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(tokenURL string) Provider {
	return NewProvider(cfg.Config{
		OAuth: cfg.OAuth{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			TokenURL:     tokenURL,
		},
	})
}

func TestRefreshExchangesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	tokens, err := newTestProvider(srv.URL).Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", tokens.AccessToken)
	assert.Equal(t, "new-refresh", tokens.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tokens.ExpiresAt, time.Minute)
}

func TestRefreshKeepsOldTokenWhenResponseOmitsIt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	tokens, err := newTestProvider(srv.URL).Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", tokens.RefreshToken)
}

func TestRefreshRejectionIsAuthExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Refresh(context.Background(), "revoked-refresh")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthExpired, apperrors.KindOf(err))
}

func TestRefreshEndpointOutageIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).Refresh(context.Background(), "refresh")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTransientNetwork, apperrors.KindOf(err))
}

func TestRefreshUnreachableEndpointIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestProvider(srv.URL).Refresh(context.Background(), "refresh")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindTransientNetwork, apperrors.KindOf(err))
}
