package shared

import (
	"fmt"
	"strings"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authorization errors
	ErrStateMismatch    = fmt.Errorf("state parameter mismatch")
	ErrAccessDenied     = fmt.Errorf("user denied access")
	ErrExchangeFailed   = fmt.Errorf("authorization code exchange failed")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Sync errors
	ErrNetworkFailure = fmt.Errorf("network failure")
	ErrPartialFetch   = fmt.Errorf("some playlists could not be fetched")

	// Snapshot errors
	ErrSnapshotLimit    = fmt.Errorf("snapshot limit reached")
	ErrSnapshotNotFound = fmt.Errorf("snapshot not found")

	// Persistence errors
	ErrWriteFailed  = fmt.Errorf("document write failed")
	ErrDecodeFailed = fmt.Errorf("document decode failed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// PartialFetchError reports a cache refresh that completed with some playlists skipped.
//
// Unwraps to [ErrPartialFetch] so callers can match it with [errors.Is].
type PartialFetchError struct {
	SkippedIDs []string
}

func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("%v: skipped %s", ErrPartialFetch, strings.Join(e.SkippedIDs, ", "))
}

func (e *PartialFetchError) Unwrap() error {
	return ErrPartialFetch
}
