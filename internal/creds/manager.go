package creds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"instagram-mcp/pkg/logging"
)

// Category selects which credential an API call uses. Messaging endpoints
// require the Page-scoped token; everything else uses the user token.
type Category string

const (
	CategoryDefault   Category = "default"
	CategoryMessaging Category = "messaging"
)

// Manager owns exclusive access to the credential store and drives the token
// lifecycle. Every API call passes through EnsureValid before dispatch.
//
// State machine, as a function of the current record at access time:
//
//	absent                      -> RequiresAuthorization (no self-heal)
//	fresh                       -> serve as-is, zero remote calls
//	inside the refresh margin   -> refresh; on failure serve the still-valid
//	                               token and log a warning (next call retries)
//	past expiry                 -> refresh; on failure RequiresAuthorization
//
// Concurrent callers that both observe a refresh-needed state share a single
// exchange round-trip via singleflight.
type Manager struct {
	store     *FileStore
	exchanger *Exchanger

	margin time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current *Record

	refreshGroup singleflight.Group
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithRefreshMargin overrides the refresh lead time.
func WithRefreshMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.margin = margin
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a lifecycle manager over the given store and exchanger.
func NewManager(store *FileStore, exchanger *Exchanger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		exchanger: exchanger,
		margin:    DefaultRefreshMargin,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Invalidate drops the in-memory record so the next access re-reads the
// store. Wired to the StoreWatcher for cross-process visibility.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// load returns the cached record, falling back to the store.
func (m *Manager) load() (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current, nil
	}

	record, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	m.current = record
	return record, nil
}

// setCurrent replaces the cached record.
func (m *Manager) setCurrent(record *Record) {
	m.mu.Lock()
	m.current = record
	m.mu.Unlock()
}

// EnsureValid returns a usable credential record, refreshing it first when it
// is near or past expiry. Callers never observe an expired token under normal
// operation.
func (m *Manager) EnsureValid(ctx context.Context) (*Record, error) {
	record, err := m.load()
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, NewAuthError(KindRequiresAuthorization,
			"no stored credentials; run 'instagram-mcp auth login'", nil)
	}

	state := record.StateAt(m.now(), m.margin)
	if state == StateValid {
		return record, nil
	}

	refreshed, refreshErr, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		return m.refresh(ctx)
	})
	if refreshErr == nil {
		return refreshed.(*Record), nil
	}

	// Refresh failed. If the old token is still inside its validity window,
	// serve it and let the next call retry; a transient outage of the refresh
	// endpoint must not block API access while the token still works.
	if record.StateAt(m.now(), m.margin) != StateExpired {
		logging.Warn("Creds", "Token refresh failed, serving current token until expiry: %v", refreshErr)
		return record, nil
	}

	return nil, NewAuthError(KindRequiresAuthorization,
		"token expired and refresh failed; run 'instagram-mcp auth login'", refreshErr)
}

// refresh exchanges the current token for a fresh long-lived one and persists
// the replacement record. Runs inside the singleflight group.
func (m *Manager) refresh(ctx context.Context) (*Record, error) {
	// A caller that queued behind an in-flight refresh sees the fresh record
	// here and skips the remote call.
	record, err := m.load()
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, NewAuthError(KindRequiresAuthorization, "no stored credentials", nil)
	}
	if record.StateAt(m.now(), m.margin) == StateValid {
		return record, nil
	}

	newToken, expiresIn, err := m.exchanger.ExchangeLongLived(ctx, record.AccessToken)
	if err != nil {
		return nil, err
	}

	// Writes fully replace the record; derived identifiers survive token
	// rotation unchanged.
	next := &Record{
		AccessToken:     newToken,
		PageAccessToken: record.PageAccessToken,
		FacebookPageID:  record.FacebookPageID,
		InstagramUserID: record.InstagramUserID,
		ExpiresIn:       expiresIn,
		SavedAt:         m.now().Unix(),
	}

	if !next.HasIdentifiers() {
		// Identifiers were never derived (or a past derivation failed).
		// A failure here must not discard a good refresh.
		if ids, err := m.exchanger.DeriveIdentifiers(ctx, newToken); err == nil {
			next.FacebookPageID = ids.FacebookPageID
			next.PageAccessToken = ids.PageAccessToken
			next.InstagramUserID = ids.InstagramUserID
		} else {
			logging.Warn("Creds", "Identifier derivation failed during refresh: %v", err)
		}
	}

	if err := m.store.Save(next); err != nil {
		return nil, err
	}
	m.setCurrent(next)

	logging.Info("Creds", "Token refreshed, new expiry %s",
		next.ExpiresAt().Format(time.RFC3339))
	return next, nil
}

// Token returns the bearer token for the given call category, refreshing the
// record first if needed.
func (m *Manager) Token(ctx context.Context, category Category) (string, error) {
	record, err := m.EnsureValid(ctx)
	if err != nil {
		return "", err
	}

	if category == CategoryMessaging {
		if record.PageAccessToken == "" {
			return "", NewAuthError(KindRequiresAuthorization,
				"messaging requires a Page access token; re-run 'instagram-mcp auth login'", nil)
		}
		return record.PageAccessToken, nil
	}

	return record.AccessToken, nil
}

// InstagramUserID returns the derived Instagram account ID, if present.
func (m *Manager) InstagramUserID() string {
	record, err := m.load()
	if err != nil || record == nil {
		return ""
	}
	return record.InstagramUserID
}

// FacebookPageID returns the Page backing the Instagram account, if present.
func (m *Manager) FacebookPageID() string {
	record, err := m.load()
	if err != nil || record == nil {
		return ""
	}
	return record.FacebookPageID
}

// CompleteAuthorization drives the full authorization-code flow: code to
// short-lived token, short-lived to long-lived, identifier derivation, then a
// single atomic save. Any failure leaves the store untouched.
func (m *Manager) CompleteAuthorization(ctx context.Context, code string) (*Record, error) {
	shortLived, _, err := m.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	longLived, expiresIn, err := m.exchanger.ExchangeLongLived(ctx, shortLived)
	if err != nil {
		return nil, err
	}

	ids, err := m.exchanger.DeriveIdentifiers(ctx, longLived)
	if err != nil {
		return nil, err
	}

	record := &Record{
		AccessToken:     longLived,
		PageAccessToken: ids.PageAccessToken,
		FacebookPageID:  ids.FacebookPageID,
		InstagramUserID: ids.InstagramUserID,
		ExpiresIn:       expiresIn,
		SavedAt:         m.now().Unix(),
	}

	if err := m.store.Save(record); err != nil {
		return nil, err
	}
	m.setCurrent(record)

	return record, nil
}

// Status reports the current lifecycle state and record without triggering
// any remote calls.
func (m *Manager) Status() (State, *Record, error) {
	record, err := m.load()
	if err != nil {
		return StateUnauthenticated, nil, err
	}
	return record.StateAt(m.now(), m.margin), record, nil
}

// Logout deletes the persisted record. Only ever driven by an explicit user
// action.
func (m *Manager) Logout() error {
	if err := m.store.Delete(); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	m.Invalidate()
	return nil
}
