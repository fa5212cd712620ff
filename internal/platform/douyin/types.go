package douyin

// awemeDetail is the content record shared by the detail API and the share page payloads
type awemeDetail struct {
	AwemeID string       `json:"aweme_id"`
	Desc    string       `json:"desc"`
	Author  awemeAuthor  `json:"author"`
	Video   *awemeVideo  `json:"video"`
	Images  []awemeImage `json:"images"`
}

type awemeAuthor struct {
	UID         string  `json:"uid"`
	SecUID      string  `json:"sec_uid"`
	Nickname    string  `json:"nickname"`
	AvatarThumb urlList `json:"avatar_thumb"`
}

type awemeVideo struct {
	PlayAddr     *urlList  `json:"play_addr"`
	DownloadAddr *urlList  `json:"download_addr"`
	Cover        *urlList  `json:"cover"`
	BitRate      []bitRate `json:"bit_rate"`
	Duration     int       `json:"duration"`
}

type awemeImage struct {
	URLList []string    `json:"url_list"`
	Video   *awemeVideo `json:"video"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
}

type bitRate struct {
	GearName string   `json:"gear_name"`
	PlayAddr *urlList `json:"play_addr"`
}

type urlList struct {
	URI     string   `json:"uri"`
	URLList []string `json:"url_list"`
}

// candidates returns the URL candidates of a possibly absent list
func (u *urlList) candidates() []string {
	if u == nil {
		return nil
	}
	return u.URLList
}

// apiDetailResponse is the envelope of the aweme detail API
type apiDetailResponse struct {
	StatusCode  int          `json:"status_code"`
	StatusMsg   string       `json:"status_msg"`
	AwemeDetail *awemeDetail `json:"aweme_detail"`
}
