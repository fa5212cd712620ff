package registry

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"video-parser/internal/platform"
	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

// Registry maps sources and share hosts to platform parsers
type Registry struct {
	mu      sync.RWMutex
	parsers map[models.VideoSource]models.Parser
	hosts   map[string]models.VideoSource
	logger  zerolog.Logger
}

// NewRegistry creates a new platform registry
func NewRegistry(logger *zerolog.Logger) *Registry {
	l := zerolog.New(os.Stdout).With().Timestamp().Str("component", "registry").Logger()
	if logger != nil {
		l = *logger
	}
	return &Registry{
		parsers: make(map[models.VideoSource]models.Parser),
		hosts:   make(map[string]models.VideoSource),
		logger:  l,
	}
}

// Register adds a parser under source together with the hosts it supports
func (r *Registry) Register(source models.VideoSource, parser models.Parser) error {
	if parser == nil {
		return fmt.Errorf("parser cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.parsers[source] = parser
	for _, host := range parser.GetSupportedHosts() {
		r.hosts[strings.ToLower(host)] = source
	}
	return nil
}

// RegisterDefaultPlatforms registers every enabled platform from config
func (r *Registry) RegisterDefaultPlatforms(config *models.Config, opts platform.Options) error {
	if !config.Platforms.Douyin.Enabled {
		r.logger.Warn().Str("source", string(models.SourceDouyin)).Msg("Platform disabled")
		return nil
	}

	if opts.Logger == nil {
		l := r.logger.With().Str("platform", string(models.SourceDouyin)).Logger()
		opts.Logger = &l
	}

	parser := platform.NewDouyinParser(config.DouyinExtractorConfig(), opts)
	if err := r.Register(models.SourceDouyin, parser); err != nil {
		return fmt.Errorf("error registering douyin parser: %w", err)
	}
	return nil
}

// GetParser returns the parser registered for source
func (r *Registry) GetParser(source models.VideoSource) (models.Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	parser, exists := r.parsers[source]
	if !exists {
		return nil, fmt.Errorf("%w: no parser registered for source %q", models.ErrUnsupportedHost, source)
	}
	return parser, nil
}

// DetectSource finds the source whose hosts include the host of rawURL
func (r *Registry) DetectSource(rawURL string) (models.VideoSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedHost, rawURL)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	source, exists := r.hosts[strings.ToLower(u.Hostname())]
	if !exists {
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedHost, u.Hostname())
	}
	return source, nil
}

// Resolve extracts the share URL from free-form text and resolves it with the
// matching parser
func (r *Registry) Resolve(ctx context.Context, shareText string) (*models.VideoInfo, error) {
	shareURL := utils.ExtractURL(strings.TrimSpace(shareText))

	source, err := r.DetectSource(shareURL)
	if err != nil {
		return nil, err
	}

	parser, err := r.GetParser(source)
	if err != nil {
		return nil, err
	}

	r.logger.Debug().Str("source", string(source)).Str("url", shareURL).Msg("Resolving share URL")
	return parser.ParseShareURL(ctx, shareURL)
}

// ParseVideoID resolves a known content ID of source
func (r *Registry) ParseVideoID(ctx context.Context, source models.VideoSource, videoID string) (*models.VideoInfo, error) {
	parser, err := r.GetParser(source)
	if err != nil {
		return nil, err
	}
	return parser.ParseVideoID(ctx, strings.TrimSpace(videoID))
}

// ListSources returns the registered sources in name order
func (r *Registry) ListSources() []models.VideoSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]models.VideoSource, 0, len(r.parsers))
	for source := range r.parsers {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

// IsSourceSupported checks if a source is registered
func (r *Registry) IsSourceSupported(source models.VideoSource) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.parsers[source]
	return exists
}

// SourceInfo describes a registered source
type SourceInfo struct {
	Name        models.VideoSource `json:"name"`
	Hosts       []string           `json:"hosts"`
	Description string             `json:"description"`
}

// GetSourceInfo returns information about all registered sources
func (r *Registry) GetSourceInfo() []SourceInfo {
	var info []SourceInfo
	for _, source := range r.ListSources() {
		parser, err := r.GetParser(source)
		if err != nil {
			continue
		}

		sourceInfo := SourceInfo{
			Name:  source,
			Hosts: parser.GetSupportedHosts(),
		}
		switch source {
		case models.SourceDouyin:
			sourceInfo.Description = "Douyin share link resolver"
		default:
			sourceInfo.Description = "Unknown source"
		}
		info = append(info, sourceInfo)
	}
	return info
}

// Close releases parser resources
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for source, parser := range r.parsers {
		if c, ok := parser.(io.Closer); ok {
			if err := c.Close(); err != nil {
				r.logger.Warn().Err(err).Str("source", string(source)).Msg("Failed to close parser")
			}
		}
	}
	return nil
}
