package ai

import (
	"errors"
	"fmt"
)

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// ServiceError reports a failed completion call. It is surfaced to the caller
// as is; nothing retries it.
type ServiceError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s completion with %s failed: %v", e.Provider, e.Model, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
