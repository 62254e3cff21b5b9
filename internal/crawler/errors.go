package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrSeriesNotFound fails a chapter job whose series has not been
	// crawled yet. The message reads series_not_found:<slug>.
	ErrSeriesNotFound = errors.New("series_not_found")

	ErrJobNotFound = errors.New("crawler: job not found")
	ErrJobActive   = errors.New("crawler: job is active")
)

func seriesNotFound(slug string) error {
	return fmt.Errorf("%w:%s", ErrSeriesNotFound, slug)
}

// StatusError reports a non-2xx response from the crawled site.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
