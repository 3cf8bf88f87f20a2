package domain

// Movie 是 YTS movie_details 返回的结构化载荷（即目录里的 yts_data）。
//
// 约束：
// - 易变/臃肿字段（上传时间、原图背景、做种数等）全部 omitempty，归一化时置空即等于删除
// - URL 字段在落盘前由 normalize 包改写为相对 base URL 的形式
type Movie struct {
	ID               int      `json:"id"`
	URL              string   `json:"url,omitempty"`
	IMDbCode         string   `json:"imdb_code"`
	Title            string   `json:"title"`
	TitleEnglish     string   `json:"title_english,omitempty"`
	TitleLong        string   `json:"title_long,omitempty"`
	Slug             string   `json:"slug,omitempty"`
	Year             int      `json:"year"`
	Rating           float64  `json:"rating"`
	Runtime          int      `json:"runtime"`
	Genres           []string `json:"genres,omitempty"`
	LikeCount        int      `json:"like_count,omitempty"`
	DownloadCount    int      `json:"download_count,omitempty"`
	DescriptionIntro string   `json:"description_intro,omitempty"`
	DescriptionFull  string   `json:"description_full,omitempty"`
	YTTrailerCode    string   `json:"yt_trailer_code,omitempty"`
	Language         string   `json:"language,omitempty"`
	MPARating        string   `json:"mpa_rating,omitempty"`

	BackgroundImage         string `json:"background_image,omitempty"`
	BackgroundImageOriginal string `json:"background_image_original,omitempty"`
	SmallCoverImage         string `json:"small_cover_image,omitempty"`
	MediumCoverImage        string `json:"medium_cover_image,omitempty"`
	LargeCoverImage         string `json:"large_cover_image,omitempty"`

	MediumScreenshotImage1 string `json:"medium_screenshot_image1,omitempty"`
	MediumScreenshotImage2 string `json:"medium_screenshot_image2,omitempty"`
	MediumScreenshotImage3 string `json:"medium_screenshot_image3,omitempty"`
	LargeScreenshotImage1  string `json:"large_screenshot_image1,omitempty"`
	LargeScreenshotImage2  string `json:"large_screenshot_image2,omitempty"`
	LargeScreenshotImage3  string `json:"large_screenshot_image3,omitempty"`

	Cast     []CastMember `json:"cast,omitempty"`
	Torrents []Torrent    `json:"torrents,omitempty"`

	DateUploaded     string `json:"date_uploaded,omitempty"`
	DateUploadedUnix int64  `json:"date_uploaded_unix,omitempty"`
}

type CastMember struct {
	Name          string `json:"name"`
	CharacterName string `json:"character_name,omitempty"`
	URLSmallImage string `json:"url_small_image,omitempty"`
	IMDbCode      string `json:"imdb_code,omitempty"`
}

// Torrent 是某个可下载版本（画质/来源）。
type Torrent struct {
	URL           string `json:"url"`
	Hash          string `json:"hash"`
	Quality       string `json:"quality"`
	Type          string `json:"type,omitempty"`
	IsRepack      string `json:"is_repack,omitempty"`
	VideoCodec    string `json:"video_codec,omitempty"`
	BitDepth      string `json:"bit_depth,omitempty"`
	AudioChannels string `json:"audio_channels,omitempty"`
	Size          string `json:"size,omitempty"`
	SizeBytes     int64  `json:"size_bytes,omitempty"`

	// 以下字段易变，落盘前会被删除。
	Seeds            *int   `json:"seeds,omitempty"`
	Peers            *int   `json:"peers,omitempty"`
	DateUploaded     string `json:"date_uploaded,omitempty"`
	DateUploadedUnix int64  `json:"date_uploaded_unix,omitempty"`
}

// Clone 深拷贝切片字段（归一化是纯函数，不能改到调用方的数据）。
func (m Movie) Clone() Movie {
	out := m
	if m.Genres != nil {
		out.Genres = append([]string(nil), m.Genres...)
	}
	if m.Cast != nil {
		out.Cast = append([]CastMember(nil), m.Cast...)
	}
	if m.Torrents != nil {
		out.Torrents = append([]Torrent(nil), m.Torrents...)
	}
	return out
}

// TitleInfo 是剧情元数据源（imdbapi.dev）返回的最小可用集。
type TitleInfo struct {
	ID           string
	PrimaryTitle string
	StartYear    int
	Plot         string
	Rating       float64
	VoteCount    int
}
