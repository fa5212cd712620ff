package douyin

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

const (
	defaultMobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	defaultDesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultRedirectTimeout  = 5 * time.Second
	defaultPageTimeout      = 15 * time.Second
	defaultAPITimeout       = 15 * time.Second
	defaultDirectURLTimeout = 10 * time.Second
)

// Resolution modes reported to the observer
const (
	ModeAPI  = "api"
	ModePage = "page"
)

// Parser resolves Douyin share links. It is safe for concurrent use.
type Parser struct {
	client      *utils.HTTPClient
	config      models.ExtractorConfig
	credentials models.CredentialProvider
	signer      models.Signer
	observer    models.ResolutionObserver
	logger      zerolog.Logger
}

// Options carries the collaborators of a Parser. Nil fields get inert defaults.
type Options struct {
	Credentials models.CredentialProvider
	Signer      models.Signer
	Observer    models.ResolutionObserver
	Logger      *zerolog.Logger

	// Transport overrides the HTTP transport, mainly for tests
	Transport http.RoundTripper
}

// NewParser creates a new Douyin parser
func NewParser(config *models.ExtractorConfig, opts Options) *Parser {
	cfg := models.ExtractorConfig{}
	if config != nil {
		cfg = *config
	}
	applyDefaults(&cfg)

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("platform", string(models.SourceDouyin)).Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	p := &Parser{
		config:      cfg,
		credentials: opts.Credentials,
		signer:      opts.Signer,
		observer:    opts.Observer,
		logger:      logger,
	}
	if p.credentials == nil {
		p.credentials = noCredentials{}
	}
	if p.signer == nil {
		p.signer = noSigner{}
	}
	if p.observer == nil {
		p.observer = noopObserver{}
	}

	p.client = utils.NewHTTPClient(utils.ClientConfig{
		ProxyURL:      cfg.Proxy,
		UserAgent:     cfg.MobileUserAgent,
		Transport:     opts.Transport,
		CheckRedirect: checkRedirect,
		Logger:        &logger,
	})

	return p
}

func applyDefaults(cfg *models.ExtractorConfig) {
	if cfg.MobileUserAgent == "" {
		cfg.MobileUserAgent = defaultMobileUserAgent
	}
	if cfg.DesktopUserAgent == "" {
		cfg.DesktopUserAgent = defaultDesktopUserAgent
	}
	if cfg.RedirectTimeout <= 0 {
		cfg.RedirectTimeout = defaultRedirectTimeout
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = defaultPageTimeout
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = defaultAPITimeout
	}
	if cfg.DirectURLTimeout <= 0 {
		cfg.DirectURLTimeout = defaultDirectURLTimeout
	}
}

// ParseShareURL resolves a Douyin share URL into media URLs
func (p *Parser) ParseShareURL(ctx context.Context, shareURL string) (*models.VideoInfo, error) {
	videoID, err := p.resolveVideoID(ctx, shareURL)
	if err != nil {
		p.observer.ObserveResolution("", err, 0)
		return nil, err
	}

	p.logger.Debug().Str("share_url", shareURL).Str("video_id", videoID).Msg("Video ID resolved")
	return p.ParseVideoID(ctx, videoID)
}

// ParseVideoID resolves a known content ID. The signed API is tried first when a
// credential is configured; any failure there falls back to the share page.
func (p *Parser) ParseVideoID(ctx context.Context, videoID string) (*models.VideoInfo, error) {
	start := time.Now()

	if videoID == "" {
		err := models.ErrIDNotFound
		p.observer.ObserveResolution("", err, 0)
		return nil, err
	}

	if credential := p.credentials.Get(); credential != "" {
		result := p.fetchAPIDetail(ctx, videoID, credential)
		if result.ok() {
			info := assembleFromAPI(result.detail)
			p.observer.ObserveResolution(ModeAPI, nil, time.Since(start))
			return info, nil
		}

		p.observer.ObserveFallback(result.reason)
		p.logger.Warn().
			Err(result.err).
			Str("video_id", videoID).
			Str("reason", result.reason).
			Msg("API strategy failed, falling back to share page")
	}

	detail, err := p.fetchPageDetail(ctx, videoID)
	if err != nil {
		p.observer.ObserveResolution(ModePage, err, time.Since(start))
		return nil, err
	}

	info := p.assembleFromPage(ctx, detail)
	p.observer.ObserveResolution(ModePage, nil, time.Since(start))
	return info, nil
}

// GetSource returns the platform source
func (p *Parser) GetSource() models.VideoSource {
	return models.SourceDouyin
}

// GetSupportedHosts returns the accepted share hosts
func (p *Parser) GetSupportedHosts() []string {
	hosts := make([]string, len(supportedHosts))
	copy(hosts, supportedHosts)
	return hosts
}

// Close releases idle connections
func (p *Parser) Close() error {
	return p.client.Close()
}

type noCredentials struct{}

func (noCredentials) Get() string { return "" }

func (noCredentials) Set(value string) error { return models.ErrEmptyCredential }

type noSigner struct{}

func (noSigner) Sign(query, userAgent string) (string, error) {
	return "", models.ErrSignerUnavailable
}

type noopObserver struct{}

func (noopObserver) ObserveUpstream(string, error) {}

func (noopObserver) ObserveFallback(string) {}

func (noopObserver) ObserveResolution(string, error, time.Duration) {}
