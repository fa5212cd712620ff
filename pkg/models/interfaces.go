package models

import (
	"context"
	"time"
)

// Parser defines the contract every platform parser implements
type Parser interface {
	// ParseShareURL resolves a canonical or short share URL
	ParseShareURL(ctx context.Context, shareURL string) (*VideoInfo, error)

	// ParseVideoID resolves an already known content ID
	ParseVideoID(ctx context.Context, videoID string) (*VideoInfo, error)

	// GetSource returns the platform this parser handles
	GetSource() VideoSource

	// GetSupportedHosts returns the hosts this parser accepts
	GetSupportedHosts() []string
}

// CredentialProvider supplies the process-wide session credential.
// Get may return "". Set rejects an empty value with ErrEmptyCredential and
// leaves the current credential untouched.
type CredentialProvider interface {
	Get() string
	Set(value string) error
}

// Signer computes the signature token required by the authenticated API
type Signer interface {
	Sign(query, userAgent string) (string, error)
}

// ResolutionObserver receives pipeline events, typically for metrics
type ResolutionObserver interface {
	// ObserveUpstream records one network call and its error, if any
	ObserveUpstream(endpoint string, err error)

	// ObserveFallback records a Mode A failure that fell back to the page strategy
	ObserveFallback(reason string)

	// ObserveResolution records a finished resolution
	ObserveResolution(mode string, err error, duration time.Duration)
}
