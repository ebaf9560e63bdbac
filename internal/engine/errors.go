package engine

import "errors"

// ErrNoChatTemplate signals that no chat template is configured for a model.
var ErrNoChatTemplate = errors.New("no chat template configured")

// dependencyUnavailableError signals a missing external dependency (e.g., llama.cpp)
// so callers can tell it apart from a broken model.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var d dependencyUnavailableError
	return errors.As(err, &d)
}

// LlamaBuilt reports whether the binary includes the in-process llama runtime
// (built with -tags=llama).
func LlamaBuilt() bool { return llamaBuilt }
