// Package normalize 把 provider 载荷收敛为稳定的落盘形态。
//
// 这里的函数都是纯函数且幂等：对已归一化的数据再跑一次不会产生任何变化。
package normalize

import (
	"strings"

	"github.com/kompoti121/kompoti/internal/domain"
)

// CleanText 把换行/制表符替换为空格，再把连续空白折叠为单个空格并去掉首尾空白。
func CleanText(s string) string {
	s = strings.NewReplacer("\n", " ", "\t", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// RelativeURL 在 u 以 baseURL 开头时去掉该前缀，得到站内相对路径。
//
// 规则：
// - baseURL 为空、u 为空、或 u 不以 baseURL 开头：原样返回（可能是 CDN 或已经是相对路径）
// - 前缀必须落在路径边界上（"https://a.com" 不会误伤 "https://a.com.cn/x"）
func RelativeURL(u, baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" || u == "" {
		return u
	}
	if !strings.HasPrefix(u, base) {
		return u
	}
	rest := u[len(base):]
	if rest == "" {
		return "/"
	}
	switch rest[0] {
	case '/', '?', '#':
		return rest
	default:
		return u
	}
}

// Movie 返回 m 的归一化副本：
// - 全部已知的绝对 URL 字段改写为相对 baseURL 的形式
// - 删除易变/臃肿字段（上传时间、原图背景、每个 torrent 的做种数与上传时间）
// - 清洗标题与完整简介的空白
func Movie(m domain.Movie, baseURL string) domain.Movie {
	out := m.Clone()

	for _, f := range []*string{
		&out.URL,
		&out.BackgroundImage,
		&out.SmallCoverImage,
		&out.MediumCoverImage,
		&out.LargeCoverImage,
		&out.MediumScreenshotImage1,
		&out.MediumScreenshotImage2,
		&out.MediumScreenshotImage3,
		&out.LargeScreenshotImage1,
		&out.LargeScreenshotImage2,
		&out.LargeScreenshotImage3,
	} {
		*f = RelativeURL(*f, baseURL)
	}

	for i := range out.Torrents {
		t := &out.Torrents[i]
		t.URL = RelativeURL(t.URL, baseURL)
		t.Seeds = nil
		t.Peers = nil
		t.DateUploaded = ""
		t.DateUploadedUnix = 0
	}

	out.DateUploaded = ""
	out.DateUploadedUnix = 0
	out.BackgroundImageOriginal = ""

	out.Title = CleanText(out.Title)
	if out.DescriptionFull != "" {
		out.DescriptionFull = CleanText(out.DescriptionFull)
	}
	return out
}

// Entry 对目录条目里的载荷做归一化（无载荷时原样返回）。
func Entry(e *domain.Entry, baseURL string) {
	if e == nil || e.Movie == nil {
		return
	}
	m := Movie(*e.Movie, baseURL)
	e.Movie = &m
}
