package domain

import "errors"

// Sentinel errors returned by repository and service implementations and
// checked by callers with errors.Is/errors.As.
var (
	// ErrNotFound indicates the requested job, history set, or screenshot
	// does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidProvider indicates an unrecognized provider enum value.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidAction indicates an unrecognized action enum value.
	ErrInvalidAction = errors.New("invalid action")

	// ErrInvalidStatus indicates an unrecognized job status value.
	ErrInvalidStatus = errors.New("invalid job status")

	// ErrNotCancellable indicates a cancel request against a job whose
	// current status is not one of the cancellable states.
	ErrNotCancellable = errors.New("job is not in a cancellable state")

	// ErrLeaseConflict indicates a conditional lock acquisition lost the
	// race to another lease holder. Not itself a failure: callers should
	// skip the job and move on.
	ErrLeaseConflict = errors.New("lease conflict")

	// ErrNoWorkersConfigured indicates the worker directory has no
	// endpoints at all (configuration error, not a health-probe miss).
	ErrNoWorkersConfigured = errors.New("no workers configured")

	// ErrUnauthorized indicates a missing, malformed, or unrecognized
	// admin bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidAPIKeyFormat indicates a bearer token that doesn't
	// parse as a keygen-issued admin key.
	ErrInvalidAPIKeyFormat = errors.New("invalid api key format")
)
