package domain

import "errors"

var (
	// ErrProviderProtocol marks a provider response whose shape does not match
	// the documented contract (e.g. a create-task reply without a task id).
	ErrProviderProtocol = errors.New("provider protocol error")
	// ErrProviderJobFailed marks a job the provider reported as failed.
	ErrProviderJobFailed = errors.New("provider job failed")
	// ErrProviderTimeout marks a job that exhausted the polling budget.
	ErrProviderTimeout = errors.New("provider job timed out")

	ErrFileNotFound       = errors.New("file not found")
	ErrHostingUnavailable = errors.New("no public host accepted the upload")
	ErrDecode             = errors.New("invalid image payload")

	ErrInsufficientCredits = errors.New("insufficient credits")
)
