// Package parseerr defines the closed set of error kinds the scraping and
// ingestion core can surface, so callers can branch with errors.Is/errors.As
// instead of inspecting strings.
package parseerr

import (
	"errors"
	"fmt"
)

var (
	ErrNotAccepted        = errors.New("url not accepted by parser")
	ErrNoParser           = errors.New("no parser registered for hostname")
	ErrMissingTitle       = errors.New("missing manga title")
	ErrMissingImages      = errors.New("missing chapter images")
	ErrCloudflareChallenge = errors.New("cloudflare challenge not solved")
	ErrNetwork            = errors.New("unexpected http status")
	ErrTransport          = errors.New("transport error")
	ErrBadDocument        = errors.New("document could not be parsed")
	ErrInvalidChapterURL  = errors.New("invalid chapter url")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// NoParser wraps ErrNoParser with the offending hostname.
func NoParser(hostname string) error {
	return fmt.Errorf("%w: %s", ErrNoParser, hostname)
}

// NotAccepted wraps ErrNotAccepted with the offending URL.
func NotAccepted(url string) error {
	return fmt.Errorf("%w: %s", ErrNotAccepted, url)
}

// Network wraps ErrNetwork with the HTTP status code observed.
func Network(status int) error {
	return fmt.Errorf("%w: status %d", ErrNetwork, status)
}

// Transport wraps ErrTransport with the underlying transport error.
func Transport(cause error) error {
	return fmt.Errorf("%w: %v", ErrTransport, cause)
}

// InvalidChapterURL wraps ErrInvalidChapterURL with the offending URL.
func InvalidChapterURL(url string) error {
	return fmt.Errorf("%w: %s", ErrInvalidChapterURL, url)
}

// InvalidArgument wraps ErrInvalidArgument with a human-readable reason,
// mirroring the original search parser's Status::invalid_argument.
func InvalidArgument(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}

// BadDocument wraps ErrBadDocument with a recovered panic value, used at
// the top of the generic parser's entry points (and as a last-resort
// guard around the registry's per-plugin goroutines) so a
// selector panic surfaces as an ordinary error instead of crashing the
// process.
func BadDocument(recovered any) error {
	return fmt.Errorf("%w: %v", ErrBadDocument, recovered)
}
