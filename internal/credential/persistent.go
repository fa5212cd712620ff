package credential

import (
	"fmt"

	"github.com/rs/zerolog"

	"video-parser/pkg/models"
)

// Store persists credentials by source
type Store interface {
	SaveCredential(source, value string) error
	LoadCredential(source string) (string, error)
}

// Persistent is a Provider that writes every update through to a Store, so an
// administrative update survives restarts
type Persistent struct {
	*Provider
	store  Store
	source string
	logger zerolog.Logger
}

// NewPersistent loads the stored credential for source. A stored value takes
// precedence over initial; initial is only used when nothing is stored yet.
func NewPersistent(store Store, source models.VideoSource, initial string, logger zerolog.Logger) (*Persistent, error) {
	stored, err := store.LoadCredential(string(source))
	if err != nil {
		return nil, fmt.Errorf("failed to load stored credential: %w", err)
	}

	value := initial
	if stored != "" {
		value = stored
		logger.Info().Str("source", string(source)).Msg("Using stored credential")
	}

	return &Persistent{
		Provider: NewProvider(value),
		store:    store,
		source:   string(source),
		logger:   logger,
	}, nil
}

// Set persists value and then makes it current. When persisting fails the
// in-memory credential is left unchanged.
func (p *Persistent) Set(value string) error {
	if value == "" {
		return models.ErrEmptyCredential
	}

	if err := p.store.SaveCredential(p.source, value); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	if err := p.Provider.Set(value); err != nil {
		return err
	}
	p.logger.Info().Str("source", p.source).Msg("Credential updated")
	return nil
}
