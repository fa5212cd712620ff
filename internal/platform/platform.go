package platform

import (
	"video-parser/internal/platform/douyin"
	"video-parser/pkg/models"
)

// Options are the collaborators shared by platform parsers
type Options = douyin.Options

// NewDouyinParser creates a new Douyin parser
func NewDouyinParser(config *models.ExtractorConfig, opts Options) *douyin.Parser {
	return douyin.NewParser(config, opts)
}
