package douyin

import (
	"context"
	"strings"

	"video-parser/pkg/models"
)

const (
	watermarkMarker = "playwm"
	unmarkedPath    = "play"
	webpSuffix      = ".webp"
)

// selectNonWebp returns the first candidate that is not a .webp image,
// the first candidate when all are .webp, or "" for an empty list
func selectNonWebp(candidates []string) string {
	for _, c := range candidates {
		if c != "" && !strings.HasSuffix(c, webpSuffix) {
			return c
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// stripWatermark swaps the watermarked playback path for the clean one
func stripWatermark(url string) string {
	return strings.ReplaceAll(url, watermarkMarker, unmarkedPath)
}

func firstURL(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

func lastURL(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[len(candidates)-1]
}

// resolveDirectVideoURL asks the playback endpoint where it redirects to.
// Any failure degrades to the original URL.
func (p *Parser) resolveDirectVideoURL(ctx context.Context, videoURL string) string {
	ctx, cancel := context.WithTimeout(ctx, p.config.DirectURLTimeout)
	defer cancel()

	resp, err := p.client.GetNoRedirect(ctx, videoURL, map[string]string{
		"User-Agent": p.config.MobileUserAgent,
	})
	p.observer.ObserveUpstream("direct_url", err)
	if err != nil {
		p.logger.Debug().Err(err).Str("url", videoURL).Msg("Direct video URL lookup failed, keeping original")
		return videoURL
	}
	resp.Body.Close()

	if location := resp.Header.Get("Location"); location != "" {
		return location
	}
	return videoURL
}

func newAuthor(a awemeAuthor) models.Author {
	return models.Author{
		UID:         a.SecUID,
		DisplayName: a.Nickname,
		AvatarURL:   selectNonWebp(a.AvatarThumb.URLList),
	}
}

// assembleFromAPI builds the result from an API detail record.
// The API orders candidates from lowest to highest quality.
func assembleFromAPI(detail *awemeDetail) *models.VideoInfo {
	info := models.NewVideoInfo()
	info.Title = detail.Desc
	info.Author = newAuthor(detail.Author)

	for _, img := range detail.Images {
		imageURL := lastURL(img.URLList)
		if imageURL == "" {
			continue
		}
		info.Images = append(info.Images, models.ImageAsset{
			URL:          imageURL,
			LivePhotoURL: apiLivePhotoURL(img.Video),
		})
	}

	if detail.Video != nil {
		if len(info.Images) == 0 {
			info.VideoURL = stripWatermark(lastURL(detail.Video.PlayAddr.candidates()))
		}
		info.CoverURL = firstURL(detail.Video.Cover.candidates())
	}

	return info
}

func apiLivePhotoURL(v *awemeVideo) string {
	if v == nil {
		return ""
	}
	if u := lastURL(v.PlayAddr.candidates()); u != "" {
		return stripWatermark(u)
	}
	return stripWatermark(lastURL(v.DownloadAddr.candidates()))
}

// assembleFromPage builds the result from a share page record. Page candidates
// put the preferred still first; the video URL still redirects and is resolved
// to its CDN location.
func (p *Parser) assembleFromPage(ctx context.Context, detail *awemeDetail) *models.VideoInfo {
	info := models.NewVideoInfo()
	info.Title = detail.Desc
	info.Author = newAuthor(detail.Author)

	for _, img := range detail.Images {
		imageURL := selectNonWebp(img.URLList)
		if imageURL == "" {
			continue
		}
		info.Images = append(info.Images, models.ImageAsset{
			URL:          imageURL,
			LivePhotoURL: pageLivePhotoURL(img.Video),
		})
	}

	if len(detail.Images) > 0 && detail.Images[0].Video == nil {
		p.logger.Debug().Str("aweme_id", detail.AwemeID).Msg("Image entries carry no video object, live photos unavailable")
	}

	if detail.Video != nil {
		if len(info.Images) == 0 {
			if videoURL := stripWatermark(firstURL(detail.Video.PlayAddr.candidates())); videoURL != "" {
				info.VideoURL = p.resolveDirectVideoURL(ctx, videoURL)
			}
		}
		info.CoverURL = selectNonWebp(detail.Video.Cover.candidates())
	}

	return info
}

func pageLivePhotoURL(v *awemeVideo) string {
	if v == nil {
		return ""
	}
	if u := lastURL(v.PlayAddr.candidates()); u != "" {
		return stripWatermark(u)
	}
	if u := lastURL(v.DownloadAddr.candidates()); u != "" {
		return stripWatermark(u)
	}
	if len(v.BitRate) > 0 {
		return stripWatermark(lastURL(v.BitRate[0].PlayAddr.candidates()))
	}
	return ""
}
