package domain

import "errors"

var (
	ErrMissingCredentials = errors.New("missing credentials: set an API key or delegated credentials")
	ErrMissingLocation    = errors.New("missing location for delegated credentials")
	ErrNoOperationHandle  = errors.New("no operation handle returned")
	ErrRetriesExhausted   = errors.New("retries exhausted while submitting")
	ErrContentFiltered    = errors.New("content filtered")
	ErrNoResultLocator    = errors.New("no video locator in result")
	ErrPollingTimeout     = errors.New("timed out waiting for operation")
	ErrDownloadFailed     = errors.New("download failed")
	ErrGenerationFailed   = errors.New("generation failed")
	ErrCancelled          = errors.New("cancelled")
	ErrStoppedByUser      = errors.New("stopped by user")

	ErrInvalidConfig     = errors.New("invalid generation config")
	ErrJobNotFound       = errors.New("job not found")
	ErrJobInFlight       = errors.New("job is processing")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Messages stored on jobs that were interrupted by a cancel request.
const (
	MessageCancelled     = "Cancelled"
	MessageStoppedByUser = "Stopped by user"
)
