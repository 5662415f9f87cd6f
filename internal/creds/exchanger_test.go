package creds

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExchangerConfig() ExchangerConfig {
	return ExchangerConfig{
		ClientID:        "client-id",
		ClientSecret:    "client-secret",
		RedirectURI:     "http://localhost:8080/callback",
		Scopes:          []string{"instagram_basic", "pages_show_list"},
		GraphAPIVersion: "v21.0",
	}
}

func TestAuthCodeURL(t *testing.T) {
	e := NewExchanger(testExchangerConfig())

	raw := e.AuthCodeURL("state-xyz")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "www.facebook.com", u.Host)
	assert.Equal(t, "/v21.0/dialog/oauth", u.Path)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "http://localhost:8080/callback", q.Get("redirect_uri"))
	assert.Equal(t, "instagram_basic pages_show_list", q.Get("scope"))
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/access_token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "good-code", r.Form.Get("code"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "short-lived",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	e := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))

	token, expiresIn, err := e.ExchangeCode(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "short-lived", token)
	assert.Equal(t, int64(3600), expiresIn)
}

func TestExchangeCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": "Invalid verification code format.",
				"type":    "OAuthException",
				"code":    100,
			},
		})
	}))
	defer srv.Close()

	e := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))

	_, _, err := e.ExchangeCode(context.Background(), "bad-code")
	require.Error(t, err)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, KindInvalidCode, authErr.Kind)
}

func TestExchangeLongLived(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/access_token", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "fb_exchange_token", q.Get("grant_type"))
		assert.Equal(t, "current-token", q.Get("fb_exchange_token"))
		assert.Equal(t, "client-id", q.Get("client_id"))
		assert.Equal(t, "client-secret", q.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "long-lived",
			TokenType:   "bearer",
			ExpiresIn:   5184000,
		})
	}))
	defer srv.Close()

	e := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))

	token, expiresIn, err := e.ExchangeLongLived(context.Background(), "current-token")
	require.NoError(t, err)
	assert.Equal(t, "long-lived", token)
	assert.Equal(t, int64(5184000), expiresIn)
}

func TestExchangeLongLivedDefaultsExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "long-lived"})
	}))
	defer srv.Close()

	e := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))

	_, expiresIn, err := e.ExchangeLongLived(context.Background(), "current-token")
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultLongLivedTTL), expiresIn)
}

func TestExchangeLongLivedRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "Error validating access token", "code": 190},
		})
	}))
	defer srv.Close()

	e := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))

	_, _, err := e.ExchangeLongLived(context.Background(), "stale-token")
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, KindInvalidCode, authErr.Kind)
	assert.Contains(t, authErr.Message, "Error validating access token")
}

func accountsHandler(t *testing.T, pages []map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/me/accounts", r.URL.Path)
		assert.Equal(t, "derived-from", r.URL.Query().Get("access_token"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": pages})
	}
}

func TestDeriveIdentifiers(t *testing.T) {
	pages := []map[string]interface{}{
		{
			"id":           "page-1",
			"name":         "My Page",
			"access_token": "page-token-1",
			"instagram_business_account": map[string]string{
				"id":       "ig-1",
				"username": "mybrand",
			},
		},
	}
	srv := httptest.NewServer(accountsHandler(t, pages))
	defer srv.Close()

	e := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))

	ids, err := e.DeriveIdentifiers(context.Background(), "derived-from")
	require.NoError(t, err)
	assert.Equal(t, "page-1", ids.FacebookPageID)
	assert.Equal(t, "page-token-1", ids.PageAccessToken)
	assert.Equal(t, "ig-1", ids.InstagramUserID)
}

func TestDeriveIdentifiersNoPages(t *testing.T) {
	srv := httptest.NewServer(accountsHandler(t, nil))
	defer srv.Close()

	e := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))

	_, err := e.DeriveIdentifiers(context.Background(), "derived-from")
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, KindNoPageFound, authErr.Kind)
}

func TestDeriveIdentifiersNoInstagramAccount(t *testing.T) {
	pages := []map[string]interface{}{
		{"id": "page-1", "access_token": "page-token-1"},
	}
	srv := httptest.NewServer(accountsHandler(t, pages))
	defer srv.Close()

	e := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))

	_, err := e.DeriveIdentifiers(context.Background(), "derived-from")
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, KindNoInstagramAccount, authErr.Kind)
}

func TestDeriveIdentifiersServerErrorIsNotAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "An unknown error occurred", "code": 1},
		})
	}))
	defer srv.Close()

	e := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))

	_, err := e.DeriveIdentifiers(context.Background(), "derived-from")
	require.Error(t, err)

	var authErr *AuthError
	assert.False(t, errors.As(err, &authErr))
	assert.Contains(t, err.Error(), "status 500")
}

func TestDeriveIdentifiersMultiplePagesFirstMatch(t *testing.T) {
	pages := []map[string]interface{}{
		{"id": "page-1", "access_token": "page-token-1"},
		{
			"id":           "page-2",
			"access_token": "page-token-2",
			"instagram_business_account": map[string]string{"id": "ig-2"},
		},
		{
			"id":           "page-3",
			"access_token": "page-token-3",
			"instagram_business_account": map[string]string{"id": "ig-3"},
		},
	}
	srv := httptest.NewServer(accountsHandler(t, pages))
	defer srv.Close()

	e := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))

	ids, err := e.DeriveIdentifiers(context.Background(), "derived-from")
	require.NoError(t, err)
	// First page carrying an IG account wins.
	assert.Equal(t, "page-2", ids.FacebookPageID)
	assert.Equal(t, "ig-2", ids.InstagramUserID)
}
