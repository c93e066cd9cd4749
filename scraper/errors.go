package scraper

import (
	"errors"
	"fmt"
)

// NetworkError is returned by fetchers on transport failures, timeouts and
// non-2xx responses. The source contributes no listings for that tick.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError reports markup the parser could not make sense of. Page errors
// mean the whole page was unrecognizable, which usually means the site
// changed its markup.
type ParseError struct {
	SourceID string
	Page     bool
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	scope := "card"
	if e.Page {
		scope = "page"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s parse error: %s: %v", e.SourceID, scope, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s parse error: %s", e.SourceID, scope, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsPageParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Page
}
