package creds

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies authorization failures.
type AuthErrorKind string

const (
	// KindInvalidCode means the authorization server rejected a code or token
	// during an exchange.
	KindInvalidCode AuthErrorKind = "invalid_code"

	// KindNoPageFound means the account has no connected Facebook Page.
	KindNoPageFound AuthErrorKind = "no_page_found"

	// KindNoInstagramAccount means no connected Page has a linked Instagram
	// Business/Creator account.
	KindNoInstagramAccount AuthErrorKind = "no_instagram_account"

	// KindRequiresAuthorization means no usable credential exists and the
	// interactive authorization flow must be run.
	KindRequiresAuthorization AuthErrorKind = "requires_authorization"
)

// AuthError is a classified authorization failure. It wraps the underlying
// cause (if any) for errors.Is/As inspection.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a classified authorization error.
func NewAuthError(kind AuthErrorKind, message string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Err: cause}
}

// RequiresAuthorization reports whether err means the caller must run the
// interactive authorization flow. Used by cmd for the semantic exit code.
func RequiresAuthorization(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == KindRequiresAuthorization
}

// Store error sentinels. Callers match with errors.Is.
var (
	// ErrStoreCorrupt means persisted data exists but cannot be parsed into a
	// valid record.
	ErrStoreCorrupt = errors.New("credential store corrupt")

	// ErrStoreWriteFailed means the record could not be durably written.
	ErrStoreWriteFailed = errors.New("credential store write failed")
)
