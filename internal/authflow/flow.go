package authflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"instagram-mcp/internal/creds"
	"instagram-mcp/pkg/logging"
)

// DefaultWait is how long the flow waits for the user to finish the
// browser-side authorization.
const DefaultWait = 10 * time.Minute

// Authorizer turns an authorization code into stored credentials. It is
// satisfied by creds.Manager.
type Authorizer interface {
	CompleteAuthorization(ctx context.Context, code string) (*creds.Record, error)
}

// Flow drives the interactive browser login: start the loopback callback
// server, open the consent URL, wait for the redirect, and hand the code to
// the authorizer.
type Flow struct {
	exchanger *creds.Exchanger
	auth      Authorizer
	port      int
	wait      time.Duration

	// openBrowser is swappable for tests.
	openBrowser func(url string) error
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithWait overrides how long the flow waits for the callback.
func WithWait(wait time.Duration) FlowOption {
	return func(f *Flow) {
		f.wait = wait
	}
}

// WithBrowserOpener overrides the browser launcher, mainly for tests.
func WithBrowserOpener(open func(url string) error) FlowOption {
	return func(f *Flow) {
		f.openBrowser = open
	}
}

// NewFlow creates a login flow. port is the loopback callback port and must
// agree with the redirect URI registered on the Facebook app.
func NewFlow(exchanger *creds.Exchanger, auth Authorizer, port int, opts ...FlowOption) *Flow {
	f := &Flow{
		exchanger:   exchanger,
		auth:        auth,
		port:        port,
		wait:        DefaultWait,
		openBrowser: OpenBrowser,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run executes the flow and returns the stored credential record. The
// consent URL is reported through onURL so the caller can print it when the
// browser cannot be opened.
func (f *Flow) Run(ctx context.Context, onURL func(url string)) (*creds.Record, error) {
	server := NewCallbackServer(f.port)
	defer server.Stop()

	if _, err := server.Start(ctx); err != nil {
		return nil, err
	}

	state := uuid.NewString()
	consentURL := f.exchanger.AuthCodeURL(state)
	if onURL != nil {
		onURL(consentURL)
	}

	if err := f.openBrowser(consentURL); err != nil {
		logging.Warn("AuthFlow", "could not open browser: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.wait)
	defer cancel()

	callback, err := server.Wait(waitCtx)
	if err != nil {
		return nil, fmt.Errorf("waiting for authorization callback: %w", err)
	}

	if callback.Denied() {
		return nil, creds.NewAuthError(creds.KindInvalidCode,
			fmt.Sprintf("authorization denied: %s (%s)", callback.Error, callback.ErrorDescription), nil)
	}
	if callback.State != state {
		return nil, creds.NewAuthError(creds.KindInvalidCode, "state parameter mismatch in callback", nil)
	}
	if callback.Code == "" {
		return nil, creds.NewAuthError(creds.KindInvalidCode, "callback carried no authorization code", nil)
	}

	return f.auth.CompleteAuthorization(ctx, callback.Code)
}
