package douyin

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
)

func TestClassifyHost(t *testing.T) {
	tests := []struct {
		host string
		want hostKind
	}{
		{"www.douyin.com", hostLongForm},
		{"WWW.DOUYIN.COM", hostLongForm},
		{"www.iesdouyin.com", hostShare},
		{"v.douyin.com", hostShortLink},
		{"douyin.com", hostUnknown},
		{"www.tiktok.com", hostUnknown},
		{"", hostUnknown},
	}

	for _, tt := range tests {
		if got := classifyHost(tt.host); got != tt.want {
			t.Errorf("classifyHost(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestVideoIDFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"video route", "https://www.douyin.com/video/7300000000000000001", "7300000000000000001"},
		{"note route", "https://www.douyin.com/note/7300000000000000002", "7300000000000000002"},
		{"slides route", "https://www.iesdouyin.com/share/slides/7300000000000000003/?did=1", "7300000000000000003"},
		{"share video", "https://www.iesdouyin.com/share/video/7300000000000000004/", "7300000000000000004"},
		{"modal id wins", "https://www.douyin.com/video/111?modal_id=222", "222"},
		{"modal id on feed", "https://www.douyin.com/discover?modal_id=333", "333"},
		{"last segment", "https://www.douyin.com/user/MS4wLjABAAAA", "MS4wLjABAAAA"},
		{"trailing slash", "https://www.douyin.com/abc/def/", "def"},
		{"root", "https://www.douyin.com/", ""},
		{"unparseable", "://bad", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := videoIDFromURL(tt.url); got != tt.want {
				t.Errorf("videoIDFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsDisallowedDomain(t *testing.T) {
	tests := map[string]bool{
		"ixigua.com":         true,
		"www.ixigua.com":     true,
		"m.IXIGUA.com":       true,
		"notixigua.com":      false,
		"ixigua.com.example": false,
		"www.douyin.com":     false,
	}

	for host, want := range tests {
		if got := isDisallowedDomain(host); got != want {
			t.Errorf("isDisallowedDomain(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestCheckRedirect(t *testing.T) {
	req := func(raw string) *http.Request {
		u, _ := url.Parse(raw)
		return &http.Request{URL: u}
	}

	if err := checkRedirect(req("https://www.iesdouyin.com/share/video/1/"), nil); err != nil {
		t.Errorf("Expected redirect to be allowed, got %v", err)
	}

	err := checkRedirect(req("https://www.ixigua.com/1"), nil)
	if !errors.Is(err, errDisallowedRedirect) {
		t.Errorf("Expected disallowed redirect error, got %v", err)
	}

	via := make([]*http.Request, 10)
	if err := checkRedirect(req("https://www.douyin.com/"), via); err == nil {
		t.Error("Expected an error after too many redirects")
	}
}
