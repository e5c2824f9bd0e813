package lpr

import "errors"

var (
	// ErrAlreadyStored is returned by insert operations when a record with
	// the same event_id exists. Callers treat it as success-equivalent.
	ErrAlreadyStored = errors.New("event already stored")

	// ErrPushUnsupported is returned by Subscribe when the platform does not
	// offer a push event stream; the ingestion loop falls back to polling.
	ErrPushUnsupported = errors.New("push subscription unsupported")
)
