package scrape

import "fmt"

// Kind classifies a scrape failure for retry and reporting decisions.
type Kind string

const (
	// KindEmpty means the fetch succeeded but yielded no usable text.
	KindEmpty Kind = "empty"
	// KindVendorError means the premium vendor rejected or failed the request.
	KindVendorError Kind = "vendor_error"
	// KindNetwork means the request never produced an HTTP response.
	KindNetwork Kind = "network"
	// KindRateLimited means the vendor returned HTTP 429.
	KindRateLimited Kind = "rate_limited"
)

// ScrapeError describes a failed scrape of one URL.
type ScrapeError struct {
	Kind    Kind
	URL     string
	Message string
	Err     error
}

func (e *ScrapeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("scrape %s failed (%s): %s", e.URL, e.Kind, e.Message)
	}
	return fmt.Sprintf("scrape %s failed (%s): %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for ScrapeError. A target with an empty
// Kind matches any scrape error; a target with a Kind set matches only that
// kind.
func (e *ScrapeError) Is(target error) bool {
	t, ok := target.(*ScrapeError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// NewScrapeError creates a new ScrapeError with a message.
func NewScrapeError(kind Kind, url, message string) *ScrapeError {
	return &ScrapeError{Kind: kind, URL: url, Message: message}
}

// WrapScrapeError creates a new ScrapeError around an underlying error.
func WrapScrapeError(kind Kind, url string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, URL: url, Err: err}
}
