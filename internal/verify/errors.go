package verify

import "errors"

// Handles resolve with one of these (possibly wrapping a cause); test with errors.Is
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrStartFailed  = errors.New("start request failed")
	ErrTimeout      = errors.New("timed out waiting for verdict")
	ErrCancelled    = errors.New("verification cancelled")
	ErrRemoteFailed = errors.New("backend reported an error")
)
