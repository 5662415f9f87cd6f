package creds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"instagram-mcp/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for authorization server requests.
const DefaultHTTPTimeout = 30 * time.Second

// defaultShortLivedTTL is assumed when the code exchange response carries no
// expiry. Short-lived tokens last about an hour.
const defaultShortLivedTTL = 3600

// Identifiers are the secondary identifiers derived from a long-lived token:
// the connected Page, its Page-scoped token, and the linked Instagram
// Business/Creator account. They are not supplied by the user.
type Identifiers struct {
	FacebookPageID  string
	PageAccessToken string
	InstagramUserID string
}

// ExchangerConfig holds the app identity for the OAuth dance.
type ExchangerConfig struct {
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	Scopes          []string
	GraphAPIVersion string
}

// Exchanger performs the three-step OAuth dance against the Graph API:
// authorization code to short-lived token, short-lived (or aging long-lived)
// token to fresh long-lived token, and identifier derivation. It is stateless;
// every call is an independent remote round-trip.
type Exchanger struct {
	httpClient *http.Client
	cfg        ExchangerConfig

	// graphBaseURL is e.g. https://graph.facebook.com/v21.0; authBaseURL is
	// the browser-facing dialog host. Both are overridable for tests.
	graphBaseURL string
	authBaseURL  string
}

// ExchangerOption configures the Exchanger.
type ExchangerOption func(*Exchanger)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ExchangerOption {
	return func(e *Exchanger) {
		e.httpClient = httpClient
	}
}

// WithGraphBaseURL overrides the Graph API base URL (tests).
func WithGraphBaseURL(base string) ExchangerOption {
	return func(e *Exchanger) {
		e.graphBaseURL = strings.TrimSuffix(base, "/")
	}
}

// WithAuthBaseURL overrides the authorization dialog base URL (tests).
func WithAuthBaseURL(base string) ExchangerOption {
	return func(e *Exchanger) {
		e.authBaseURL = strings.TrimSuffix(base, "/")
	}
}

// NewExchanger creates an Exchanger for the given app identity.
func NewExchanger(cfg ExchangerConfig, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		httpClient:   &http.Client{Timeout: DefaultHTTPTimeout},
		cfg:          cfg,
		graphBaseURL: "https://graph.facebook.com/" + cfg.GraphAPIVersion,
		authBaseURL:  "https://www.facebook.com/" + cfg.GraphAPIVersion,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// oauthConfig builds the x/oauth2 config for the authorization-code step.
func (e *Exchanger) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.cfg.ClientID,
		ClientSecret: e.cfg.ClientSecret,
		RedirectURL:  e.cfg.RedirectURI,
		Scopes:       e.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  e.authBaseURL + "/dialog/oauth",
			TokenURL: e.graphBaseURL + "/oauth/access_token",
		},
	}
}

// AuthCodeURL returns the authorization URL the user opens in a browser.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.oauthConfig().AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for a short-lived token.
// A rejection from the authorization server maps to KindInvalidCode.
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (string, int64, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	token, err := e.oauthConfig().Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", 0, NewAuthError(KindInvalidCode,
				"authorization server rejected the code", err)
		}
		return "", 0, fmt.Errorf("code exchange failed: %w", err)
	}

	expiresIn := token.ExpiresIn
	if expiresIn == 0 && !token.Expiry.IsZero() {
		expiresIn = int64(time.Until(token.Expiry) / time.Second)
	}
	if expiresIn <= 0 {
		expiresIn = defaultShortLivedTTL
	}

	return token.AccessToken, expiresIn, nil
}

// tokenResponse is the wire shape of the Graph token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeLongLived exchanges any currently-valid token (short- or long-lived)
// for a fresh long-lived token via grant_type=fb_exchange_token. This is also
// the refresh path: there is no separate refresh-token credential.
func (e *Exchanger) ExchangeLongLived(ctx context.Context, currentToken string) (string, int64, error) {
	params := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {e.cfg.ClientID},
		"client_secret":     {e.cfg.ClientSecret},
		"fb_exchange_token": {currentToken},
	}

	body, err := e.get(ctx, e.graphBaseURL+"/oauth/access_token", params)
	if err != nil {
		return "", 0, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, fmt.Errorf("parsing token response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", 0, NewAuthError(KindInvalidCode,
			"token response carried no access_token", nil)
	}

	expiresIn := resp.ExpiresIn
	if expiresIn <= 0 {
		// The Graph API sometimes omits expires_in for long-lived tokens;
		// they are documented to last 60 days.
		expiresIn = DefaultLongLivedTTL
	}

	return resp.AccessToken, expiresIn, nil
}

// accountsResponse is the wire shape of /me/accounts.
type accountsResponse struct {
	Data []struct {
		ID                       string `json:"id"`
		Name                     string `json:"name"`
		AccessToken              string `json:"access_token"`
		InstagramBusinessAccount *struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"instagram_business_account"`
	} `json:"data"`
}

// DeriveIdentifiers queries the account's connected Pages and returns the
// Page ID, Page token, and linked Instagram Business Account ID. When multiple
// Pages are connected, the first Page with a linked Instagram account is
// selected and a warning is logged; multi-Page accounts should pin the
// choice via configuration instead.
func (e *Exchanger) DeriveIdentifiers(ctx context.Context, longLivedToken string) (Identifiers, error) {
	params := url.Values{
		"fields":       {"id,name,access_token,instagram_business_account{id,username}"},
		"access_token": {longLivedToken},
	}

	body, err := e.get(ctx, e.graphBaseURL+"/me/accounts", params)
	if err != nil {
		return Identifiers{}, err
	}

	var resp accountsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Identifiers{}, fmt.Errorf("parsing accounts response: %w", err)
	}

	if len(resp.Data) == 0 {
		return Identifiers{}, NewAuthError(KindNoPageFound,
			"the account has no connected Facebook Page", nil)
	}

	if len(resp.Data) > 1 {
		logging.Warn("Creds",
			"Account has %d connected Pages; selecting the first with a linked Instagram account",
			len(resp.Data))
	}

	for _, page := range resp.Data {
		if page.InstagramBusinessAccount != nil && page.InstagramBusinessAccount.ID != "" {
			return Identifiers{
				FacebookPageID:  page.ID,
				PageAccessToken: page.AccessToken,
				InstagramUserID: page.InstagramBusinessAccount.ID,
			}, nil
		}
	}

	return Identifiers{}, NewAuthError(KindNoInstagramAccount,
		"no connected Page has a linked Instagram Business/Creator account", nil)
}

// graphErrorBody is the Graph API error envelope.
type graphErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// get performs a GET against the authorization server. Credential rejections
// (4xx) map to KindInvalidCode with the remote message attached; server-side
// failures stay plain errors so a transient outage is never read as a
// rejected credential.
func (e *Exchanger) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authorization server request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading authorization server response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var graphErr graphErrorBody
		message := fmt.Sprintf("authorization server returned status %d", resp.StatusCode)
		if json.Unmarshal(body, &graphErr) == nil && graphErr.Error.Message != "" {
			message = graphErr.Error.Message
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("authorization server error (status %d): %s",
				resp.StatusCode, message)
		}
		return nil, NewAuthError(KindInvalidCode, message, nil)
	}

	return body, nil
}
