package creds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphStub is a fake authorization server that counts exchange calls.
type graphStub struct {
	srv *httptest.Server

	exchangeCalls int64
	deriveCalls   int64

	failExchange bool
	expiresIn    int64
}

func newGraphStub(t *testing.T) *graphStub {
	t.Helper()
	stub := &graphStub{expiresIn: 5184000}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&stub.exchangeCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		if stub.failExchange {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{"message": "Error validating access token", "code": 190},
			})
			return
		}
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "refreshed-token", ExpiresIn: stub.expiresIn})
	})
	mux.HandleFunc("/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&stub.deriveCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{
				"id":                         "page-1",
				"access_token":               "page-token-1",
				"instagram_business_account": map[string]string{"id": "ig-1"},
			}},
		})
	})

	stub.srv = httptest.NewServer(mux)
	t.Cleanup(stub.srv.Close)
	return stub
}

func (s *graphStub) exchanges() int64 {
	return atomic.LoadInt64(&s.exchangeCalls)
}

type managerFixture struct {
	store   *FileStore
	stub    *graphStub
	manager *Manager
	now     time.Time
}

func newManagerFixture(t *testing.T, record *Record) *managerFixture {
	t.Helper()

	f := &managerFixture{
		store: NewFileStore(filepath.Join(t.TempDir(), "tokens.json")),
		stub:  newGraphStub(t),
		now:   time.Unix(1700000000, 0),
	}
	if record != nil {
		require.NoError(t, f.store.Save(record))
	}

	exchanger := NewExchanger(testExchangerConfig(), WithGraphBaseURL(f.stub.srv.URL))
	f.manager = NewManager(f.store, exchanger,
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func (f *managerFixture) recordAt(expiresIn, age int64) *Record {
	return &Record{
		AccessToken:     "current-token",
		PageAccessToken: "page-token",
		FacebookPageID:  "page-1",
		InstagramUserID: "ig-1",
		ExpiresIn:       expiresIn,
		SavedAt:         f.now.Unix() - age,
	}
}

func TestEnsureValidAbsentStore(t *testing.T) {
	f := newManagerFixture(t, nil)

	_, err := f.manager.EnsureValid(context.Background())
	require.Error(t, err)
	assert.True(t, RequiresAuthorization(err))
	// No network call may be attempted for an absent record.
	assert.EqualValues(t, 0, f.stub.exchanges())
}

func TestEnsureValidFreshTokenNoRemoteCalls(t *testing.T) {
	f := newManagerFixture(t, nil)
	require.NoError(t, f.store.Save(f.recordAt(5184000, 60))) // 60 days, 1 minute old

	record, err := f.manager.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "current-token", record.AccessToken)

	// Idempotence: the second call issues zero remote calls as well.
	_, err = f.manager.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, f.stub.exchanges())
}

func TestEnsureValidNearExpiryRefreshes(t *testing.T) {
	f := newManagerFixture(t, nil)
	// 12 hours left: inside the one-day refresh margin.
	require.NoError(t, f.store.Save(f.recordAt(5184000, 5184000-12*3600)))

	record, err := f.manager.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", record.AccessToken)
	assert.EqualValues(t, 1, f.stub.exchanges())

	// The new record is stamped with the refresh instant and the remote TTL.
	assert.Equal(t, f.now.Unix(), record.SavedAt)
	assert.Equal(t, int64(5184000), record.ExpiresIn)

	// Identifiers survive rotation; no re-derivation happened.
	assert.Equal(t, "ig-1", record.InstagramUserID)
	assert.EqualValues(t, 0, atomic.LoadInt64(&f.stub.deriveCalls))

	// And it was persisted.
	persisted, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", persisted.AccessToken)
}

func TestEnsureValidExpiredRefreshes(t *testing.T) {
	f := newManagerFixture(t, nil)
	require.NoError(t, f.store.Save(f.recordAt(100, 200))) // expired 100s ago

	record, err := f.manager.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", record.AccessToken)
}

func TestEnsureValidNearExpiryDegradesOnRefreshFailure(t *testing.T) {
	f := newManagerFixture(t, nil)
	f.stub.failExchange = true
	require.NoError(t, f.store.Save(f.recordAt(5184000, 5184000-3600))) // 1 hour left

	// Refresh fails but the old token is still inside its window: the call
	// must succeed with the old token, not error.
	record, err := f.manager.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "current-token", record.AccessToken)
	assert.EqualValues(t, 1, f.stub.exchanges())
}

func TestEnsureValidExpiredFailsOnRefreshFailure(t *testing.T) {
	f := newManagerFixture(t, nil)
	f.stub.failExchange = true
	require.NoError(t, f.store.Save(f.recordAt(100, 200)))

	_, err := f.manager.EnsureValid(context.Background())
	require.Error(t, err)
	assert.True(t, RequiresAuthorization(err))
}

func TestEnsureValidConcurrentCallersSingleRefresh(t *testing.T) {
	f := newManagerFixture(t, nil)
	require.NoError(t, f.store.Save(f.recordAt(5184000, 5184000-3600)))

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*Record, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.manager.EnsureValid(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "refreshed-token", results[i].AccessToken)
	}

	// All callers shared one exchange round-trip.
	assert.EqualValues(t, 1, f.stub.exchanges())
}

func TestEnsureValidDerivesMissingIdentifiersOnRefresh(t *testing.T) {
	f := newManagerFixture(t, nil)
	require.NoError(t, f.store.Save(&Record{
		AccessToken: "current-token",
		ExpiresIn:   5184000,
		SavedAt:     f.now.Unix() - (5184000 - 3600),
	}))

	record, err := f.manager.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "page-1", record.FacebookPageID)
	assert.Equal(t, "page-token-1", record.PageAccessToken)
	assert.Equal(t, "ig-1", record.InstagramUserID)
	assert.EqualValues(t, 1, atomic.LoadInt64(&f.stub.deriveCalls))
}

func TestTokenSelectsByCategory(t *testing.T) {
	f := newManagerFixture(t, nil)
	require.NoError(t, f.store.Save(f.recordAt(5184000, 60)))

	userToken, err := f.manager.Token(context.Background(), CategoryDefault)
	require.NoError(t, err)
	assert.Equal(t, "current-token", userToken)

	pageToken, err := f.manager.Token(context.Background(), CategoryMessaging)
	require.NoError(t, err)
	assert.Equal(t, "page-token", pageToken)
}

func TestTokenMessagingWithoutPageToken(t *testing.T) {
	f := newManagerFixture(t, nil)
	require.NoError(t, f.store.Save(&Record{
		AccessToken: "current-token",
		ExpiresIn:   5184000,
		SavedAt:     f.now.Unix() - 60,
	}))

	_, err := f.manager.Token(context.Background(), CategoryMessaging)
	require.Error(t, err)
	assert.True(t, RequiresAuthorization(err))
}

func TestCompleteAuthorization(t *testing.T) {
	f := newManagerFixture(t, nil)

	record, err := f.manager.CompleteAuthorization(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "refreshed-token", record.AccessToken)
	assert.Equal(t, "page-1", record.FacebookPageID)
	assert.Equal(t, "page-token-1", record.PageAccessToken)
	assert.Equal(t, "ig-1", record.InstagramUserID)
	assert.Equal(t, f.now.Unix(), record.SavedAt)

	persisted, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, record, persisted)
}

func TestCompleteAuthorizationDeriveFailureWritesNothing(t *testing.T) {
	f := newManagerFixture(t, nil)

	// A server whose accounts endpoint reports zero connected Pages.
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 100})
	})
	mux.HandleFunc("/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	exchanger := NewExchanger(testExchangerConfig(), WithGraphBaseURL(srv.URL))
	manager := NewManager(f.store, exchanger, WithClock(func() time.Time { return f.now }))

	_, err := manager.CompleteAuthorization(context.Background(), "auth-code")
	require.Error(t, err)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, KindNoPageFound, authErr.Kind)

	// No partial record may have been written.
	record, err := f.store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestStatus(t *testing.T) {
	f := newManagerFixture(t, nil)

	state, record, err := f.manager.Status()
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, state)
	assert.Nil(t, record)

	require.NoError(t, f.store.Save(f.recordAt(5184000, 60)))
	f.manager.Invalidate()

	state, record, err = f.manager.Status()
	require.NoError(t, err)
	assert.Equal(t, StateValid, state)
	require.NotNil(t, record)
}

func TestLogout(t *testing.T) {
	f := newManagerFixture(t, nil)
	require.NoError(t, f.store.Save(f.recordAt(5184000, 60)))

	require.NoError(t, f.manager.Logout())

	_, err := f.manager.EnsureValid(context.Background())
	assert.True(t, RequiresAuthorization(err))
}

func TestInvalidatePicksUpExternalWrite(t *testing.T) {
	f := newManagerFixture(t, nil)
	require.NoError(t, f.store.Save(f.recordAt(5184000, 60)))

	_, err := f.manager.EnsureValid(context.Background())
	require.NoError(t, err)

	// Another process replaces the record.
	external := f.recordAt(5184000, 60)
	external.AccessToken = "external-token"
	require.NoError(t, f.store.Save(external))

	// Without invalidation the cached record is served.
	record, err := f.manager.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "current-token", record.AccessToken)

	f.manager.Invalidate()
	record, err = f.manager.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "external-token", record.AccessToken)
}
