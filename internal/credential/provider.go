package credential

import (
	"sync/atomic"

	"video-parser/pkg/models"
)

// Provider holds the process-wide session credential in memory.
// Reads and writes are atomic; the last write wins.
type Provider struct {
	value atomic.Pointer[string]
}

// NewProvider creates a provider seeded with initial, which may be empty
func NewProvider(initial string) *Provider {
	p := &Provider{}
	p.value.Store(&initial)
	return p
}

// Get returns the current credential or ""
func (p *Provider) Get() string {
	if v := p.value.Load(); v != nil {
		return *v
	}
	return ""
}

// Set replaces the credential. An empty value is rejected and the current
// credential is kept.
func (p *Provider) Set(value string) error {
	if value == "" {
		return models.ErrEmptyCredential
	}
	p.value.Store(&value)
	return nil
}
