package store

import "fmt"

// ConnectionError indicates the graph database could not be reached or
// authenticated against.
type ConnectionError struct {
	URI     string
	Message string
}

func (e *ConnectionError) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("graph connection failed for %s: %s", e.URI, e.Message)
	}
	return fmt.Sprintf("graph connection failed: %s", e.Message)
}

// Is implements errors.Is support for ConnectionError.
func (e *ConnectionError) Is(target error) bool {
	_, ok := target.(*ConnectionError)
	return ok
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(uri, message string) *ConnectionError {
	return &ConnectionError{URI: uri, Message: message}
}

// QueryError indicates a Cypher statement failed to execute.
type QueryError struct {
	Operation string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("graph query failed during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for QueryError.
func (e *QueryError) Is(target error) bool {
	_, ok := target.(*QueryError)
	return ok
}

// NewQueryError creates a new QueryError.
func NewQueryError(operation string, err error) *QueryError {
	return &QueryError{Operation: operation, Err: err}
}

// ConstraintError indicates input that violates a storage invariant, such as
// a relation name that cannot be used as a relationship type.
type ConstraintError struct {
	Field   string
	Message string
}

func (e *ConstraintError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("constraint violation on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("constraint violation: %s", e.Message)
}

// Is implements errors.Is support for ConstraintError.
func (e *ConstraintError) Is(target error) bool {
	_, ok := target.(*ConstraintError)
	return ok
}

// NewConstraintError creates a new ConstraintError.
func NewConstraintError(field, message string) *ConstraintError {
	return &ConstraintError{Field: field, Message: message}
}
