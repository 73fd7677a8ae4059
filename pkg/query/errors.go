package query

import "fmt"

// QueryError reports invalid question input: an empty question or a
// malformed timestamp. Handlers map it to a client error.
type QueryError struct {
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("query error: %s", e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func (e *QueryError) Is(target error) bool {
	_, ok := target.(*QueryError)
	return ok
}

// NewQueryError creates a new QueryError.
func NewQueryError(message string, err error) *QueryError {
	return &QueryError{Message: message, Err: err}
}
