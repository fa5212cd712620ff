package models

import (
	"fmt"
	"time"
)

// VideoSource identifies the platform a share link belongs to
type VideoSource string

const (
	SourceDouyin VideoSource = "douyin"
)

// ImageAsset is one still image of an image post
type ImageAsset struct {
	URL          string `json:"url"`
	LivePhotoURL string `json:"live_photo_url"`
}

// Author holds best-effort author metadata
type Author struct {
	UID         string `json:"uid"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"avatar"`
}

// VideoInfo is the resolved, watermark-free media for one piece of content.
//
// A result is either video-shaped (VideoURL set, Images empty) or image-post-shaped
// (Images set, VideoURL empty). Partial upstream data may leave both empty.
type VideoInfo struct {
	VideoURL string       `json:"video_url"`
	CoverURL string       `json:"cover_url"`
	Title    string       `json:"title"`
	Images   []ImageAsset `json:"images"`
	Author   Author       `json:"author"`
}

// NewVideoInfo returns an empty result with a non-nil image list
func NewVideoInfo() *VideoInfo {
	return &VideoInfo{Images: []ImageAsset{}}
}

// IsImagePost reports whether the result carries still images
func (v *VideoInfo) IsImagePost() bool {
	return len(v.Images) > 0
}

// IsVideo reports whether the result carries a playable video URL
func (v *VideoInfo) IsVideo() bool {
	return v.VideoURL != ""
}

// ExtractorConfig defines configuration for platform parsers
type ExtractorConfig struct {
	Proxy            string
	MobileUserAgent  string
	DesktopUserAgent string
	RedirectTimeout  time.Duration
	PageTimeout      time.Duration
	APITimeout       time.Duration
	DirectURLTimeout time.Duration
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Host         string `mapstructure:"host" yaml:"host"`
		Port         int    `mapstructure:"port" yaml:"port"`
		ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Database struct {
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
		Path    string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"database" yaml:"database"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
		Output string `mapstructure:"output" yaml:"output"`
	} `mapstructure:"log" yaml:"log"`

	Proxy struct {
		Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
		Type     string `mapstructure:"type" yaml:"type"`
		Host     string `mapstructure:"host" yaml:"host"`
		Port     int    `mapstructure:"port" yaml:"port"`
		Username string `mapstructure:"username" yaml:"username"`
		Password string `mapstructure:"password" yaml:"password"`
	} `mapstructure:"proxy" yaml:"proxy"`

	Platforms struct {
		Douyin struct {
			Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
			Cookie           string `mapstructure:"cookie" yaml:"cookie"`
			MobileUserAgent  string `mapstructure:"mobile_user_agent" yaml:"mobile_user_agent"`
			DesktopUserAgent string `mapstructure:"desktop_user_agent" yaml:"desktop_user_agent"`
			RedirectTimeout  int    `mapstructure:"redirect_timeout" yaml:"redirect_timeout"`
			PageTimeout      int    `mapstructure:"page_timeout" yaml:"page_timeout"`
			APITimeout       int    `mapstructure:"api_timeout" yaml:"api_timeout"`
			DirectURLTimeout int    `mapstructure:"direct_url_timeout" yaml:"direct_url_timeout"`
		} `mapstructure:"douyin" yaml:"douyin"`
	} `mapstructure:"platforms" yaml:"platforms"`

	Signer struct {
		ScriptPath string `mapstructure:"script_path" yaml:"script_path"`
		Function   string `mapstructure:"function" yaml:"function"`
	} `mapstructure:"signer" yaml:"signer"`

	Auth struct {
		Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
		SecretToken   string `mapstructure:"secret_token" yaml:"secret_token"`
		BasicUsername string `mapstructure:"basic_username" yaml:"basic_username"`
		BasicPassword string `mapstructure:"basic_password" yaml:"basic_password"`
		JWTSecret     string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
		TokenExpiry   int    `mapstructure:"token_expiry" yaml:"token_expiry"`
		AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`
	} `mapstructure:"auth" yaml:"auth"`

	RateLimit struct {
		Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
		RequestsPerSecond int      `mapstructure:"requests_per_second" yaml:"requests_per_second"`
		Burst             int      `mapstructure:"burst" yaml:"burst"`
		MaxConcurrent     int      `mapstructure:"max_concurrent" yaml:"max_concurrent"`
		WhitelistedIPs    []string `mapstructure:"whitelisted_ips" yaml:"whitelisted_ips"`
	} `mapstructure:"rate_limit" yaml:"rate_limit"`

	Batch struct {
		MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
		MaxItems      int `mapstructure:"max_items" yaml:"max_items"`
		JobRetention  int `mapstructure:"job_retention" yaml:"job_retention"` // minutes
	} `mapstructure:"batch" yaml:"batch"`
}

// ProxyURL builds the upstream proxy URL, or "" when no proxy is enabled
func (c *Config) ProxyURL() string {
	if !c.Proxy.Enabled || c.Proxy.Host == "" {
		return ""
	}

	scheme := c.Proxy.Type
	if scheme == "" {
		scheme = "http"
	}

	auth := ""
	if c.Proxy.Username != "" {
		auth = c.Proxy.Username
		if c.Proxy.Password != "" {
			auth += ":" + c.Proxy.Password
		}
		auth += "@"
	}

	return fmt.Sprintf("%s://%s%s:%d", scheme, auth, c.Proxy.Host, c.Proxy.Port)
}

// DouyinExtractorConfig converts the douyin platform section into parser configuration
func (c *Config) DouyinExtractorConfig() *ExtractorConfig {
	d := c.Platforms.Douyin
	return &ExtractorConfig{
		Proxy:            c.ProxyURL(),
		MobileUserAgent:  d.MobileUserAgent,
		DesktopUserAgent: d.DesktopUserAgent,
		RedirectTimeout:  time.Duration(d.RedirectTimeout) * time.Second,
		PageTimeout:      time.Duration(d.PageTimeout) * time.Second,
		APITimeout:       time.Duration(d.APITimeout) * time.Second,
		DirectURLTimeout: time.Duration(d.DirectURLTimeout) * time.Second,
	}
}
