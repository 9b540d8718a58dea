package domain

import "errors"

var (
	// ErrConfiguration marks a missing or invalid job descriptor. Fatal to the run.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrCorruptArtifact marks an existing station file whose trailing line
	// has no parseable leading date. Fatal for that station only.
	ErrCorruptArtifact = errors.New("corrupt artifact")

	// ErrRemoteSchema marks a fetched table whose shape or values do not match
	// the row schema.
	ErrRemoteSchema = errors.New("remote schema mismatch")

	// ErrNetwork marks a failed fetch after retries are exhausted.
	ErrNetwork = errors.New("network error")

	// ErrAborted is returned when the operator declines to resolve a date conflict.
	ErrAborted = errors.New("aborted by user")
)
