package douyin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"video-parser/pkg/models"
)

// hostKind classifies a URL host
type hostKind int

const (
	hostUnknown hostKind = iota
	hostLongForm
	hostShare
	hostShortLink
)

const (
	longFormHost  = "www.douyin.com"
	shareHost     = "www.iesdouyin.com"
	shortLinkHost = "v.douyin.com"
)

var (
	supportedHosts = []string{longFormHost, shareHost, shortLinkHost}

	// Redirect targets on these domains belong to a different platform
	disallowedRedirectDomains = []string{"ixigua.com"}

	routeIDPattern = regexp.MustCompile(`/(?:video|note|slides)/(\d+)`)

	errDisallowedRedirect = errors.New("redirected to a disallowed domain")
)

func classifyHost(host string) hostKind {
	switch strings.ToLower(host) {
	case longFormHost:
		return hostLongForm
	case shareHost:
		return hostShare
	case shortLinkHost:
		return hostShortLink
	default:
		return hostUnknown
	}
}

func isDisallowedDomain(host string) bool {
	host = strings.ToLower(host)
	for _, domain := range disallowedRedirectDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// checkRedirect stops redirect chains before they reach another platform
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if isDisallowedDomain(req.URL.Hostname()) {
		return fmt.Errorf("%w: %s", errDisallowedRedirect, req.URL.Hostname())
	}
	return nil
}

// videoIDFromURL applies the long-form ID rule: modal_id query parameter, then a
// video/note/slides route, then the last non-empty path segment
func videoIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if id := u.Query().Get("modal_id"); id != "" {
		return id
	}

	if m := routeIDPattern.FindStringSubmatch(u.Path); len(m) == 2 {
		return m[1]
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

// resolveVideoID turns a share URL into a content ID, following short links
func (p *Parser) resolveVideoID(ctx context.Context, shareURL string) (string, error) {
	u, err := url.Parse(shareURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedHost, shareURL)
	}

	var id string
	switch classifyHost(u.Hostname()) {
	case hostLongForm, hostShare:
		id = videoIDFromURL(shareURL)
	case hostShortLink:
		id, err = p.followShortLink(ctx, shareURL)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedHost, u.Host)
	}

	if id == "" {
		return "", fmt.Errorf("%w: %s", models.ErrIDNotFound, shareURL)
	}
	return id, nil
}

// followShortLink follows a short link with a mobile user agent and extracts the
// ID from wherever it lands
func (p *Parser) followShortLink(ctx context.Context, shareURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.RedirectTimeout)
	defer cancel()

	resp, err := p.client.Get(ctx, shareURL, map[string]string{
		"User-Agent": p.config.MobileUserAgent,
	})
	p.observer.ObserveUpstream("short_link", err)
	if err != nil {
		if errors.Is(err, errDisallowedRedirect) {
			return "", fmt.Errorf("%w: short link %s: %v", models.ErrUnsupportedHost, shareURL, err)
		}
		return "", fmt.Errorf("%w: short link %s: %w", models.ErrUpstreamRequestFailed, shareURL, err)
	}
	resp.Body.Close()

	finalURL := resp.Request.URL
	if isDisallowedDomain(finalURL.Hostname()) {
		return "", fmt.Errorf("%w: short link redirected to %s", models.ErrUnsupportedHost, finalURL.Hostname())
	}
	switch classifyHost(finalURL.Hostname()) {
	case hostLongForm, hostShare:
	default:
		return "", fmt.Errorf("%w: short link landed on %s", models.ErrUnsupportedHost, finalURL.Hostname())
	}

	p.logger.Debug().Str("share_url", shareURL).Str("final_url", finalURL.String()).Msg("Short link resolved")
	return videoIDFromURL(finalURL.String()), nil
}
