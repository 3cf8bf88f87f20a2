// Package opensubtitles 实现字幕列表页的抓取与 HTML 解析。
package opensubtitles

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	providerx "github.com/kompoti121/kompoti/internal/provider"
)

const (
	DefaultURL          = "https://www.opensubtitles.org/en/search/sublanguageid-alb/searchonlymovies-on/offset-0/sort-5/asc-0"
	DefaultDownloadBase = "https://dl.opensubtitles.org/en/download/sub/"
)

// Provider 负责列表页。
//
// 约束：
// - Fetch 不做缓存/限速（由上层统一控制）；被 Cloudflare 质询时直接返回 BlockedError，不尝试绕过
// - Parse 必须是纯函数（只依赖输入 html 与 DownloadBase）
type Provider struct {
	URL          string
	DownloadBase string
	Client       *resty.Client
}

func (*Provider) Name() string { return "opensubtitles" }

// Fetch 下载列表页 HTML。
func (p *Provider) Fetch(ctx context.Context) ([]byte, error) {
	if p.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	u := strings.TrimSpace(p.URL)
	if u == "" {
		u = DefaultURL
	}

	resp, err := p.Client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		Get(u)
	if err != nil {
		return nil, providerx.Wrap(p.Name(), "fetch", err)
	}

	b := resp.Body()
	if isChallenge(resp.StatusCode(), resp.Header(), b) {
		return nil, providerx.Wrap(p.Name(), "fetch", &providerx.BlockedError{URL: u, Reason: "cf-challenge"})
	}
	if err := providerx.CheckResponse(resp); err != nil {
		return nil, providerx.Wrap(p.Name(), "fetch", err)
	}
	if len(b) == 0 {
		return nil, providerx.Wrap(p.Name(), "fetch", errors.New("empty response body"))
	}
	return b, nil
}

var challengeMarkers = [][]byte{
	[]byte("challenge-platform"),
	[]byte("cf-chl-"),
	[]byte("<title>Just a moment...</title>"),
}

// isChallenge 识别 Cloudflare 的 JS 质询页（通常是 403/503 + 特征标记）。
func isChallenge(status int, h http.Header, body []byte) bool {
	if strings.EqualFold(strings.TrimSpace(h.Get("cf-mitigated")), "challenge") {
		return true
	}
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return false
	}
	for _, m := range challengeMarkers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}
