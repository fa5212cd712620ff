package models

import "errors"

var (
	// ErrUnsupportedHost is returned when a URL host matches no platform rule
	ErrUnsupportedHost = errors.New("unsupported host")

	// ErrIDNotFound is returned when no content ID could be extracted
	ErrIDNotFound = errors.New("video id not found")

	// ErrAntiCrawlerTriggered is returned when the share page carries no known payload.
	// Upstream most likely served a verification page; retrying without a fresh
	// credential is pointless.
	ErrAntiCrawlerTriggered = errors.New("anti-crawler triggered: upstream returned incomplete data")

	// ErrUpstreamRequestFailed wraps network, timeout and status failures
	ErrUpstreamRequestFailed = errors.New("upstream request failed")

	ErrEmptyCredential   = errors.New("credential must not be empty")
	ErrSignerUnavailable = errors.New("signer unavailable")
)

// Error kinds reported to API clients and metrics
const (
	KindUnsupportedHost       = "UnsupportedHost"
	KindIDNotFound            = "IdNotFound"
	KindAntiCrawlerTriggered  = "AntiCrawlerTriggered"
	KindUpstreamRequestFailed = "UpstreamRequestFailed"
	KindInternal              = "Internal"
)

// ErrorKind classifies err into one of the taxonomy kinds
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedHost):
		return KindUnsupportedHost
	case errors.Is(err, ErrIDNotFound):
		return KindIDNotFound
	case errors.Is(err, ErrAntiCrawlerTriggered):
		return KindAntiCrawlerTriggered
	case errors.Is(err, ErrUpstreamRequestFailed):
		return KindUpstreamRequestFailed
	default:
		return KindInternal
	}
}
