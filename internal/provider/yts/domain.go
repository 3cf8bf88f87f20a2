package yts

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	providerx "github.com/kompoti121/kompoti/internal/provider"
)

const (
	DefaultStatusURL = "https://yifystatus.com/"
	DefaultBaseURL   = "https://yts.lt"
)

const domainMarker = "Current official domain"

// DetectDomain 从状态页读取当前官方域名（去掉末尾 /）。
// 任何失败（网络、状态码、页面结构变化）都回退到 fallback，并记一条 warn。
func DetectDomain(ctx context.Context, c *resty.Client, statusURL, fallback string, log zerolog.Logger) string {
	if strings.TrimSpace(statusURL) == "" {
		statusURL = DefaultStatusURL
	}
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultBaseURL
	}
	fallback = strings.TrimRight(fallback, "/")

	if c == nil {
		return fallback
	}
	resp, err := c.R().SetContext(ctx).Get(statusURL)
	if err == nil {
		err = providerx.CheckResponse(resp)
	}
	if err != nil {
		log.Warn().Err(err).Str("fallback", fallback).Msg("读取 YTS 状态页失败，使用默认域名")
		return fallback
	}

	if d := parseDomain(resp.Body()); d != "" {
		log.Info().Str("domain", d).Msg("检测到 YTS 当前域名")
		return d
	}
	log.Warn().Str("fallback", fallback).Msg("状态页未找到当前域名，使用默认域名")
	return fallback
}

// parseDomain 找到直接包含标记文本的元素，取其下第一个带 href 的链接。
func parseDomain(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	found := ""
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !ownTextContains(s, domainMarker) {
			return true
		}
		href, ok := s.Find("a[href]").First().Attr("href")
		if ok && strings.TrimSpace(href) != "" {
			found = strings.TrimRight(strings.TrimSpace(href), "/")
		}
		return false
	})
	return found
}

func ownTextContains(s *goquery.Selection, sub string) bool {
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode && strings.Contains(c.Data, sub) {
				return true
			}
		}
	}
	return false
}
