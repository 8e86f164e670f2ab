package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the pipeline.
//
// CollaboratorError covers any external-call failure (timeout, malformed
// response, non-2xx, transport error). It is always caught at the stage
// boundary and converted into a degraded stage result, never escalated.
//
// ConfigurationError means the orchestration graph is malformed at
// construction time. It is fatal and raised before any request is served.
//
// DataError marks a malformed input record (for example a transaction
// missing an expected numeric field); the affected stage falls back to a
// zero or default value.
var (
	ErrCollaborator  = errors.New("collaborator call failed")
	ErrConfiguration = errors.New("orchestration graph invalid")
	ErrData          = errors.New("malformed input record")
)

// CollaboratorError wraps a failed external call with the collaborator name.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Is reports membership in the CollaboratorError class.
func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }

// NewCollaboratorError wraps err, tagging the collaborator that produced it.
func NewCollaboratorError(collaborator string, err error) error {
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}

// ConfigurationError reports a malformed orchestration graph.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("orchestration graph invalid: %s", e.Detail)
}

// Is reports membership in the ConfigurationError class.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// NewConfigurationError builds a fatal construction-time error.
func NewConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Detail: fmt.Sprintf(format, args...)}
}
