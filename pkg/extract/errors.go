package extract

import "fmt"

// ExtractError indicates the language model transport failed outright.
// Malformed model output is not an error at this boundary; the extractor
// re-prompts and eventually degrades to an empty bundle.
type ExtractError struct {
	Message string
	Err     error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ExtractError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for ExtractError.
func (e *ExtractError) Is(target error) bool {
	_, ok := target.(*ExtractError)
	return ok
}

// NewExtractError creates a new ExtractError.
func NewExtractError(message string, err error) *ExtractError {
	return &ExtractError{Message: message, Err: err}
}
