package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

// maxBodySize caps how much of an upstream response is read into memory
const maxBodySize = 16 * 1024 * 1024

// HTTPClient represents a configurable HTTP client
type HTTPClient struct {
	client    *http.Client
	noFollow  *http.Client
	transport http.RoundTripper
	userAgent string
	logger    zerolog.Logger
}

// ClientConfig represents HTTP client configuration
type ClientConfig struct {
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	ProxyURL        string
	UserAgent       string
	TLSInsecure     bool

	// Transport replaces the default transport, mainly for tests
	Transport http.RoundTripper

	// CheckRedirect is consulted by the redirect-following client
	CheckRedirect func(req *http.Request, via []*http.Request) error

	Logger *zerolog.Logger
}

// NewHTTPClient creates a new HTTP client with the given configuration.
// Timeouts are applied per request through the context.
func NewHTTPClient(config ClientConfig) *HTTPClient {
	transport := config.Transport
	if transport == nil {
		transport = buildTransport(config)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "http_client").Logger()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &HTTPClient{
		client: &http.Client{
			Transport:     transport,
			CheckRedirect: config.CheckRedirect,
		},
		noFollow: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		transport: transport,
		userAgent: config.UserAgent,
		logger:    logger,
	}
}

func buildTransport(config ClientConfig) *http.Transport {
	maxIdle := config.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 100
	}
	idleTimeout := config.IdleConnTimeout
	if idleTimeout == 0 {
		idleTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxIdle,
		IdleConnTimeout:     idleTimeout,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 10,
	}

	// Configure proxy if provided
	if config.ProxyURL != "" {
		proxyURL, err := url.Parse(config.ProxyURL)
		if err == nil {
			switch proxyURL.Scheme {
			case "http", "https":
				transport.Proxy = http.ProxyURL(proxyURL)
			case "socks5":
				dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
				if err == nil {
					if cd, ok := dialer.(proxy.ContextDialer); ok {
						transport.Proxy = nil
						transport.DialContext = cd.DialContext
					}
				}
			}
		}
	}

	if config.TLSInsecure {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return transport
}

// Get performs a GET request following redirects
func (c *HTTPClient) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.do(ctx, c.client, url, headers)
}

// GetNoRedirect performs a GET request and returns the first response as-is,
// including 3xx responses and their Location header
func (c *HTTPClient) GetNoRedirect(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.do(ctx, c.noFollow, url, headers)
}

func (c *HTTPClient) do(ctx context.Context, client *http.Client, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Msg("Making HTTP request")

	return client.Do(req)
}

// Close closes idle connections
func (c *HTTPClient) Close() error {
	if t, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// ReadBody reads at most maxBodySize bytes of the response body and closes it
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return body, nil
}

// FormatDuration formats duration to human readable string
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	} else if d < time.Minute {
		return d.Round(time.Second).String()
	} else if d < time.Hour {
		return fmt.Sprintf("%vm %vs", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%vh %vm %vs", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
