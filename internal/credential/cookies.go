package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"video-parser/pkg/models"
)

// SourceDomains maps sources to the cookie domains that belong to them
var SourceDomains = map[models.VideoSource][]string{
	models.SourceDouyin: {"douyin.com", "iesdouyin.com"},
}

var errNoCookies = errors.New("no cookies found")

// exportedCookie is one entry of a browser extension cookie export
type exportedCookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// Normalize parses a "name=value; name2=value2" header string and renders it
// back in canonical form. Later duplicates replace earlier ones and malformed
// pairs are dropped.
func Normalize(cookieString string) (string, error) {
	var cookies []*http.Cookie

	for _, pair := range strings.Split(cookieString, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			continue
		}

		cookies = append(cookies, &http.Cookie{
			Name:  strings.TrimSpace(parts[0]),
			Value: strings.TrimSpace(parts[1]),
		})
	}

	return join(deduplicate(cookies))
}

// LoadFile reads a credential from a file holding either a JSON cookie export
// (array of {name, value, domain}) or a raw cookie header line. JSON entries are
// filtered to the domains of source.
func LoadFile(path string, source models.VideoSource) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read cookie file: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if !strings.HasPrefix(content, "[") {
		return Normalize(content)
	}

	var exported []exportedCookie
	if err := json.Unmarshal([]byte(content), &exported); err != nil {
		return "", fmt.Errorf("failed to unmarshal cookies: %w", err)
	}

	domains := SourceDomains[source]
	var cookies []*http.Cookie
	for _, c := range exported {
		if c.Name == "" || !matchesDomain(c.Domain, domains) {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain})
	}

	return join(deduplicate(cookies))
}

func matchesDomain(domain string, domains []string) bool {
	if domain == "" {
		return true
	}
	domain = strings.TrimPrefix(strings.ToLower(domain), ".")
	for _, d := range domains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// deduplicate keeps the last cookie of each name in first-seen order
func deduplicate(cookies []*http.Cookie) []*http.Cookie {
	index := make(map[string]int)
	var result []*http.Cookie

	for _, cookie := range cookies {
		if i, exists := index[cookie.Name]; exists {
			result[i] = cookie
			continue
		}
		index[cookie.Name] = len(result)
		result = append(result, cookie)
	}

	return result
}

func join(cookies []*http.Cookie) (string, error) {
	if len(cookies) == 0 {
		return "", errNoCookies
	}

	pairs := make([]string, 0, len(cookies))
	for _, cookie := range cookies {
		pairs = append(pairs, cookie.Name+"="+cookie.Value)
	}
	return strings.Join(pairs, "; "), nil
}
