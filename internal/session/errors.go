package session

import "errors"

// modelUnavailableError signals that the weights are absent locally and no
// hub repository (or fetcher) is configured to download them.
type modelUnavailableError struct{ id string }

func (e modelUnavailableError) Error() string {
	return "model " + e.id + " is not present locally and no hub repository is configured"
}

// IsModelUnavailable reports whether err indicates missing artifacts with no way to fetch them.
func IsModelUnavailable(err error) bool {
	var e modelUnavailableError
	return errors.As(err, &e)
}

// ErrClosed is returned by EnsureLoaded after Close.
var ErrClosed = errors.New("session closed")
