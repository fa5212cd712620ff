package douyin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"video-parser/pkg/models"
)

// fakeTransport routes requests by host to handlers and counts calls per host+path
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	calls    map[string]int
	requests []*http.Request
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers: make(map[string]http.HandlerFunc),
		calls:    make(map[string]int),
	}
}

func (f *fakeTransport) handle(host string, h http.HandlerFunc) {
	f.handlers[host] = h
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls[req.URL.Host+req.URL.Path]++
	f.requests = append(f.requests, req)
	h, ok := f.handlers[req.URL.Host]
	f.mu.Unlock()

	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no route to host %s", req.URL.Host)
	}

	rec := httptest.NewRecorder()
	h(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func (f *fakeTransport) count(hostPath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[hostPath]
}

func (f *fakeTransport) lastRequest(hostPath string) *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].URL.Host+f.requests[i].URL.Path == hostPath {
			return f.requests[i]
		}
	}
	return nil
}

// staticCredentials is a minimal in-test credential provider
type staticCredentials struct {
	mu    sync.Mutex
	value string
}

func (c *staticCredentials) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *staticCredentials) Set(value string) error {
	if value == "" {
		return models.ErrEmptyCredential
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	return nil
}

type fakeSigner struct {
	token string
	err   error
}

func (s fakeSigner) Sign(query, userAgent string) (string, error) {
	return s.token, s.err
}

// recordingObserver remembers pipeline events
type recordingObserver struct {
	mu        sync.Mutex
	upstream  []string
	fallbacks []string
	modes     []string
	errs      []error
}

func (o *recordingObserver) ObserveUpstream(endpoint string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.upstream = append(o.upstream, endpoint)
}

func (o *recordingObserver) ObserveFallback(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallbacks = append(o.fallbacks, reason)
}

func (o *recordingObserver) ObserveResolution(mode string, err error, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modes = append(o.modes, mode)
	o.errs = append(o.errs, err)
}

const (
	testVideoID   = "7300000000000000001"
	sharePagePath = shareHost + "/share/video/" + testVideoID + "/"
	apiPath       = longFormHost + "/aweme/v1/web/aweme/detail/"
)

func newTestParser(t *testing.T, transport http.RoundTripper, opts Options) *Parser {
	t.Helper()
	logger := zerolog.Nop()
	opts.Logger = &logger
	opts.Transport = transport
	return NewParser(&models.ExtractorConfig{
		RedirectTimeout:  time.Second,
		PageTimeout:      time.Second,
		APITimeout:       time.Second,
		DirectURLTimeout: time.Second,
	}, opts)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal fixture: %v", err)
	}
	return string(data)
}

// renderDataPage embeds a percent-encoded payload the way the mobile page does
func renderDataPage(t *testing.T, payload any) string {
	return `<!DOCTYPE html><html><head><title>douyin</title></head><body>` +
		`<script id="RENDER_DATA" type="application/json">` + url.PathEscape(mustJSON(t, payload)) + `</script>` +
		`</body></html>`
}

// routerDataPage embeds a raw payload in a global assignment
func routerDataPage(t *testing.T, payload any) string {
	return `<!DOCTYPE html><html><head></head><body><div id="root"></div>` +
		`<script>window._ROUTER_DATA = ` + mustJSON(t, payload) + `</script>` +
		`</body></html>`
}

func videoRecord() map[string]any {
	return map[string]any{
		"aweme_id": testVideoID,
		"desc":     "a test video",
		"author": map[string]any{
			"sec_uid":      "MS4wLjABAAAAtest",
			"nickname":     "tester",
			"avatar_thumb": map[string]any{"url_list": []string{"https://p3/avatar.webp", "https://p3/avatar.jpeg"}},
		},
		"video": map[string]any{
			"play_addr": map[string]any{"url_list": []string{"https://cdn/playwm/x.mp4"}},
			"cover":     map[string]any{"url_list": []string{"https://p3/cover.webp", "https://p3/cover.jpeg"}},
		},
	}
}

func imagePostRecord() map[string]any {
	return map[string]any{
		"aweme_id": testVideoID,
		"desc":     "an image post",
		"author":   map[string]any{"sec_uid": "sec", "nickname": "poster"},
		"images": []any{
			map[string]any{
				"url_list": []string{"https://p3/1.webp", "https://p3/1.jpeg", "https://p3/1-hq.jpeg"},
				"video": map[string]any{
					"play_addr": map[string]any{"url_list": []string{"https://cdn/playwm/live1-low.mp4", "https://cdn/playwm/live1.mp4"}},
				},
			},
			map[string]any{
				"url_list": []string{"https://p3/2.webp"},
			},
			map[string]any{
				"url_list": []string{},
			},
		},
		"video": map[string]any{
			"play_addr": map[string]any{"url_list": []string{"https://cdn/playwm/music.mp4"}},
			"cover":     map[string]any{"url_list": []string{"https://p3/cover.jpeg"}},
		},
	}
}

func servePage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}
}

func serveOK(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func assertKind(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("Expected error %v, got %v", target, err)
	}
}
