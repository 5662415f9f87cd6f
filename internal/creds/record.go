package creds

import (
	"time"
)

// DefaultRefreshMargin is the lead time before expiry at which a proactive
// refresh is attempted. One day absorbs clock skew and refresh-call latency
// without ever serving an expired token.
const DefaultRefreshMargin = 24 * time.Hour

// DefaultLongLivedTTL is the documented lifetime of a long-lived token
// (60 days), used when the exchange response omits expires_in.
const DefaultLongLivedTTL = 5184000

// Record is the persisted credential record: the long-lived user token plus
// the identifiers derived from it. A record is always written whole; partial
// updates would let the token and identifiers drift apart.
//
// Expiry is never stored as an absolute instant. It is derived from
// SavedAt + ExpiresIn on every check, so a record moved between machines with
// skewed clocks does not carry a stale precomputed deadline.
type Record struct {
	// AccessToken is the long-lived user token. Never empty in a valid record.
	AccessToken string `json:"access_token"`

	// PageAccessToken is the Page-scoped token required by messaging endpoints.
	PageAccessToken string `json:"page_access_token,omitempty"`

	// FacebookPageID is the connected Page's identifier.
	FacebookPageID string `json:"facebook_page_id,omitempty"`

	// InstagramUserID is the connected Business/Creator account's identifier.
	InstagramUserID string `json:"instagram_user_id,omitempty"`

	// ExpiresIn is the validity window in seconds, as reported by the
	// authorization server at issuance or refresh time.
	ExpiresIn int64 `json:"expires_in"`

	// SavedAt is the epoch second the record was last written.
	SavedAt int64 `json:"access_token_saved_at"`
}

// State describes where a record sits in its lifecycle.
type State int

const (
	// StateUnauthenticated means no record exists.
	StateUnauthenticated State = iota

	// StateValid means the token is fresh; no remote call needed.
	StateValid

	// StateNearExpiry means the token is inside the refresh margin but still
	// usable.
	StateNearExpiry

	// StateExpired means the token has passed its computed expiry.
	StateExpired
)

// String makes State satisfy fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateValid:
		return "valid"
	case StateNearExpiry:
		return "near_expiry"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ExpiresAt returns the computed expiry instant.
func (r *Record) ExpiresAt() time.Time {
	return time.Unix(r.SavedAt+r.ExpiresIn, 0)
}

// StateAt classifies the record relative to now with the given refresh margin.
func (r *Record) StateAt(now time.Time, margin time.Duration) State {
	if r == nil {
		return StateUnauthenticated
	}
	expiresAt := r.ExpiresAt()
	switch {
	case !now.Before(expiresAt):
		return StateExpired
	case !now.Before(expiresAt.Add(-margin)):
		return StateNearExpiry
	default:
		return StateValid
	}
}

// HasIdentifiers reports whether the derived identifiers are present.
// They are fetched once after the first successful exchange and survive
// token rotation unchanged.
func (r *Record) HasIdentifiers() bool {
	return r.FacebookPageID != "" && r.InstagramUserID != ""
}
