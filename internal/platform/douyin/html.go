package douyin

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

const sharePageURL = "https://www.iesdouyin.com/share/video/%s/"

var routerDataPattern = regexp.MustCompile(`(?s)window\._ROUTER_DATA\s*=\s*(.*?)</script>`)

// payloadLocator finds an embedded JSON payload in a share page body
type payloadLocator struct {
	name   string
	locate func(body []byte) (map[string]json.RawMessage, bool)
}

// recordLocator finds the content record inside a parsed payload
type recordLocator struct {
	name   string
	locate func(payload map[string]json.RawMessage) (json.RawMessage, bool)
}

// Page versions seen in the wild, tried in order. Supporting a new layout means
// appending a locator.
var (
	payloadLocators = []payloadLocator{
		{name: "render_data", locate: renderDataPayload},
		{name: "router_data", locate: routerDataPayload},
	}

	recordLocators = []recordLocator{
		{name: "app.videoDetail", locate: videoDetailRecord},
		{name: "loaderData", locate: loaderDataRecord},
		{name: "aweme_details", locate: awemeDetailsRecord},
	}
)

// extractPageRecord runs every payload locator against the body and returns the
// first content record found
func extractPageRecord(body []byte) (*awemeDetail, string, bool) {
	for _, pl := range payloadLocators {
		payload, ok := pl.locate(body)
		if !ok {
			continue
		}
		for _, rl := range recordLocators {
			raw, ok := rl.locate(payload)
			if !ok {
				continue
			}
			var detail awemeDetail
			if err := json.Unmarshal(raw, &detail); err != nil {
				continue
			}
			return &detail, pl.name + "/" + rl.name, true
		}
	}
	return nil, "", false
}

// renderDataPayload reads <script id="RENDER_DATA">, which is usually percent-encoded
func renderDataPayload(body []byte) (map[string]json.RawMessage, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}

	raw := strings.TrimSpace(doc.Find("script#RENDER_DATA").First().Text())
	if raw == "" {
		return nil, false
	}

	if payload, ok := parseObject([]byte(unescape(raw))); ok {
		return payload, true
	}
	return parseObject([]byte(raw))
}

// unescape decodes valid %XX escapes and keeps any other '%' literally.
// '+' is not treated as a space.
func unescape(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if decoded, err := hex.DecodeString(s[i+1 : i+3]); err == nil {
				b.WriteByte(decoded[0])
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// routerDataPayload reads the window._ROUTER_DATA assignment
func routerDataPayload(body []byte) (map[string]json.RawMessage, bool) {
	m := routerDataPattern.FindSubmatch(body)
	if len(m) < 2 {
		return nil, false
	}
	raw := bytes.TrimSpace(m[1])
	raw = bytes.TrimSuffix(raw, []byte(";"))
	return parseObject(raw)
}

func parseObject(data []byte) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// nonEmptyRecord rejects null, empty and non-object records
func nonEmptyRecord(raw json.RawMessage) (json.RawMessage, bool) {
	obj, ok := parseObject(raw)
	if !ok || len(obj) == 0 {
		return nil, false
	}
	return raw, true
}

func videoDetailRecord(payload map[string]json.RawMessage) (json.RawMessage, bool) {
	app, ok := parseObject(payload["app"])
	if !ok {
		return nil, false
	}
	return nonEmptyRecord(app["videoDetail"])
}

func loaderDataRecord(payload map[string]json.RawMessage) (json.RawMessage, bool) {
	loaderData, ok := parseObject(payload["loaderData"])
	if !ok {
		return nil, false
	}

	keys := make([]string, 0, len(loaderData))
	for k := range loaderData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		route, ok := parseObject(loaderData[k])
		if !ok {
			continue
		}
		var info struct {
			ItemList []json.RawMessage `json:"item_list"`
		}
		if err := json.Unmarshal(route["videoInfoRes"], &info); err != nil || len(info.ItemList) == 0 {
			continue
		}
		if raw, ok := nonEmptyRecord(info.ItemList[0]); ok {
			return raw, true
		}
	}
	return nil, false
}

func awemeDetailsRecord(payload map[string]json.RawMessage) (json.RawMessage, bool) {
	var list []json.RawMessage
	if err := json.Unmarshal(payload["aweme_details"], &list); err != nil || len(list) == 0 {
		return nil, false
	}
	return nonEmptyRecord(list[0])
}

// fetchPageDetail downloads the public share page and extracts its record
func (p *Parser) fetchPageDetail(ctx context.Context, videoID string) (*awemeDetail, error) {
	pageURL := fmt.Sprintf(sharePageURL, videoID)

	ctx, cancel := context.WithTimeout(ctx, p.config.PageTimeout)
	defer cancel()

	resp, err := p.client.Get(ctx, pageURL, map[string]string{
		"User-Agent":                p.config.MobileUserAgent,
		"Referer":                   "https://www.douyin.com/",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "zh-CN,zh;q=0.9,en;q=0.8",
		"Upgrade-Insecure-Requests": "1",
	})
	p.observer.ObserveUpstream("share_page", err)
	if err != nil {
		return nil, fmt.Errorf("%w: share page: %w", models.ErrUpstreamRequestFailed, err)
	}

	body, err := utils.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: share page: %w", models.ErrUpstreamRequestFailed, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: share page: unexpected status code: %d", models.ErrUpstreamRequestFailed, resp.StatusCode)
	}

	detail, source, ok := extractPageRecord(body)
	if !ok {
		p.logger.Error().
			Str("video_id", videoID).
			Str("html_preview", preview(body, 200)).
			Msg("No known payload in share page")
		return nil, fmt.Errorf("%w: video %s", models.ErrAntiCrawlerTriggered, videoID)
	}

	p.logger.Debug().Str("video_id", videoID).Str("source", source).Msg("Share page record located")
	return detail, nil
}

func preview(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return string(body)
}
