package graph

import (
	"fmt"
)

// ErrorKind classifies dispatcher failures by their remote cause.
type ErrorKind string

const (
	// KindHTTP4xx is a client error from the Graph API.
	KindHTTP4xx ErrorKind = "http_4xx"

	// KindHTTP5xx is a server error from the Graph API.
	KindHTTP5xx ErrorKind = "http_5xx"

	// KindNetwork is a transport failure or timeout; the request may or may
	// not have reached the server.
	KindNetwork ErrorKind = "network"

	// KindRateLimited is an application or platform rate limit.
	KindRateLimited ErrorKind = "rate_limited"
)

// rateLimitCodes are the Graph API error codes that signal throttling:
// 4 (application request limit), 17 (user request limit), 32 (page request
// limit), 613 (custom rate limit).
var rateLimitCodes = map[int]bool{4: true, 17: true, 32: true, 613: true}

// APIError is a classified Graph API failure. The remote error body is
// carried verbatim but never interpreted beyond kind mapping; retry policy
// belongs to the caller.
type APIError struct {
	Kind       ErrorKind
	StatusCode int

	// Fields parsed from the Graph error envelope, when present.
	Message   string
	Type      string
	Code      int
	Subcode   int
	FBTraceID string

	Err error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("graph API error (%s, status %d, code %d): %s",
			e.Kind, e.StatusCode, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("graph API error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("graph API error (%s, status %d)", e.Kind, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// graphErrorEnvelope is the wire shape of a Graph API error response.
type graphErrorEnvelope struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// classify maps an HTTP status plus parsed error body to an APIError.
func classify(statusCode int, envelope graphErrorEnvelope) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    envelope.Error.Message,
		Type:       envelope.Error.Type,
		Code:       envelope.Error.Code,
		Subcode:    envelope.Error.Subcode,
		FBTraceID:  envelope.Error.FBTraceID,
	}

	switch {
	case statusCode == 429 || rateLimitCodes[envelope.Error.Code]:
		apiErr.Kind = KindRateLimited
	case statusCode >= 500:
		apiErr.Kind = KindHTTP5xx
	default:
		apiErr.Kind = KindHTTP4xx
	}

	return apiErr
}
