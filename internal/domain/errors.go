package domain

import "errors"

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStaleState is returned by a store when the persisted status no longer
	// matches the status the caller expected to transition from.
	ErrStaleState        = errors.New("task status changed concurrently")
	ErrInvalidBrokerType = errors.New("invalid broker type")
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrInvalidTaskRef    = errors.New("invalid task reference")
	ErrInvalidPayload    = errors.New("invalid payload")
)
