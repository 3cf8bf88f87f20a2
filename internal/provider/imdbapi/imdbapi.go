// Package imdbapi 是剧情/评分元数据源（imdbapi.dev）的客户端。
package imdbapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/kompoti121/kompoti/internal/domain"
	providerx "github.com/kompoti121/kompoti/internal/provider"
)

const (
	name           = "imdbapi"
	DefaultBaseURL = "https://api.imdbapi.dev"
)

type Client struct {
	BaseURL string
	HTTP    *resty.Client
}

func (*Client) Name() string { return name }

type titleResponse struct {
	ID           string `json:"id"`
	PrimaryTitle string `json:"primaryTitle"`
	StartYear    int    `json:"startYear"`
	Plot         string `json:"plot"`
	Rating       *struct {
		AggregateRating float64 `json:"aggregateRating"`
		VoteCount       int     `json:"voteCount"`
	} `json:"rating"`
}

// Title 拉取 /titles/{id}。plot 与 rating 缺失都不是错误（零值即可）。
func (c *Client) Title(ctx context.Context, imdbID domain.IMDbID) (domain.TitleInfo, error) {
	if c.HTTP == nil {
		return domain.TitleInfo{}, providerx.Wrap(name, "plot", errors.New("http client 不能为空"))
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(base + "/titles/" + url.PathEscape(imdbID))
	if err != nil {
		return domain.TitleInfo{}, providerx.Wrap(name, "plot", err)
	}
	if err := providerx.CheckResponse(resp); err != nil {
		return domain.TitleInfo{}, providerx.Wrap(name, "plot", err)
	}

	var tr titleResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		return domain.TitleInfo{}, providerx.Wrap(name, "plot", fmt.Errorf("解析响应失败：%w", err))
	}

	info := domain.TitleInfo{
		ID:           tr.ID,
		PrimaryTitle: strings.TrimSpace(tr.PrimaryTitle),
		StartYear:    tr.StartYear,
		Plot:         strings.TrimSpace(tr.Plot),
	}
	if tr.Rating != nil {
		info.Rating = tr.Rating.AggregateRating
		info.VoteCount = tr.Rating.VoteCount
	}
	return info, nil
}
