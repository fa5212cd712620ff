package douyin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"video-parser/internal/utils"
)

const apiDetailURL = "https://www.douyin.com/aweme/v1/web/aweme/detail/"

// apiParams are the fixed web client identifiers the detail API expects
var apiParams = map[string]string{
	"device_platform":  "webapp",
	"aid":              "6383",
	"channel":          "channel_pc_web",
	"pc_client_type":   "1",
	"version_code":     "190500",
	"version_name":     "19.5.0",
	"cookie_enabled":   "true",
	"screen_width":     "1920",
	"screen_height":    "1080",
	"browser_language": "zh-CN",
	"browser_platform": "Win32",
	"browser_name":     "Chrome",
	"browser_version":  "120.0.0.0",
	"browser_online":   "true",
	"engine_name":      "Blink",
	"engine_version":   "120.0.0.0",
	"os_name":          "Windows",
	"os_version":       "10",
	"platform":         "PC",
}

// Reasons reported when the API strategy gives up
const (
	reasonSign       = "sign"
	reasonRequest    = "request"
	reasonStatus     = "status"
	reasonEmptyBody  = "empty_body"
	reasonNotJSON    = "not_json"
	reasonNoDetail   = "no_detail"
	reasonReadFailed = "read_body"
)

var errNoDetail = errors.New("response has no aweme_detail")

// apiResult is the outcome of one API attempt. A failed attempt keeps its
// reason and error for logging only; callers fall back instead of returning it.
type apiResult struct {
	detail *awemeDetail
	reason string
	err    error
}

func (r apiResult) ok() bool {
	return r.detail != nil
}

func apiFailure(reason string, err error) apiResult {
	return apiResult{reason: reason, err: err}
}

// apiQuery encodes the request parameters for a content ID
func apiQuery(videoID string) string {
	params := url.Values{}
	for k, v := range apiParams {
		params.Set(k, v)
	}
	params.Set("aweme_id", videoID)
	return params.Encode()
}

// fetchAPIDetail runs the signed detail request with the session credential
func (p *Parser) fetchAPIDetail(ctx context.Context, videoID, credential string) apiResult {
	query := apiQuery(videoID)

	signature, err := p.signer.Sign(query, p.config.DesktopUserAgent)
	if err != nil {
		return apiFailure(reasonSign, err)
	}
	requestURL := apiDetailURL + "?" + query + "&a_bogus=" + url.QueryEscape(signature)

	ctx, cancel := context.WithTimeout(ctx, p.config.APITimeout)
	defer cancel()

	resp, err := p.client.Get(ctx, requestURL, map[string]string{
		"User-Agent": p.config.DesktopUserAgent,
		"Referer":    "https://www.douyin.com/video/" + videoID,
		"Accept":     "application/json, text/plain, */*",
		"Cookie":     credential,
	})
	p.observer.ObserveUpstream("api_detail", err)
	if err != nil {
		return apiFailure(reasonRequest, err)
	}

	body, err := utils.ReadBody(resp)
	if err != nil {
		return apiFailure(reasonReadFailed, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return apiFailure(reasonStatus, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return apiFailure(reasonEmptyBody, errors.New("empty response body"))
	}

	var detailResp apiDetailResponse
	if err := json.Unmarshal(body, &detailResp); err != nil {
		return apiFailure(reasonNotJSON, fmt.Errorf("error parsing API response: %w", err))
	}
	if detailResp.AwemeDetail == nil {
		return apiFailure(reasonNoDetail, fmt.Errorf("%w (status_code=%d, status_msg=%q)",
			errNoDetail, detailResp.StatusCode, detailResp.StatusMsg))
	}

	return apiResult{detail: detailResp.AwemeDetail}
}
