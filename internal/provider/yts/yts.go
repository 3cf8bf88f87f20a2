// Package yts 是电影/种子元数据源（YTS API v2）的客户端。
package yts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/kompoti121/kompoti/internal/domain"
	providerx "github.com/kompoti121/kompoti/internal/provider"
)

const name = "yts"

// Client 通过 IMDb ID 查找 YTS 条目并拉取详情。
type Client struct {
	// BaseURL 是站点源（例如 https://yts.lt），API 路径固定为 /api/v2。
	BaseURL string
	HTTP    *resty.Client
}

func (*Client) Name() string { return name }

type envelope[T any] struct {
	Status        string `json:"status"`
	StatusMessage string `json:"status_message"`
	Data          T      `json:"data"`
}

type listData struct {
	MovieCount int `json:"movie_count"`
	Movies     []struct {
		ID       int    `json:"id"`
		IMDbCode string `json:"imdb_code"`
	} `json:"movies"`
}

type detailsData struct {
	Movie domain.Movie `json:"movie"`
}

// Lookup 用 IMDb ID 搜索，只接受 imdb_code 完全相等的结果。
// 没有精确匹配时返回包含 ErrNotFound 的错误。
func (c *Client) Lookup(ctx context.Context, imdbID domain.IMDbID) (int, error) {
	var env envelope[listData]
	if err := c.get(ctx, "list_movies.json", map[string]string{"query_term": imdbID}, &env); err != nil {
		return 0, providerx.Wrap(name, "lookup", err)
	}
	for _, m := range env.Data.Movies {
		if m.IMDbCode == imdbID && m.ID != 0 {
			return m.ID, nil
		}
	}
	return 0, providerx.Wrap(name, "lookup", fmt.Errorf("%s: %w", imdbID, providerx.ErrNotFound))
}

// Details 拉取带图片与演员信息的完整详情。
func (c *Client) Details(ctx context.Context, movieID int) (domain.Movie, error) {
	var env envelope[detailsData]
	q := map[string]string{
		"movie_id":    strconv.Itoa(movieID),
		"with_images": "true",
		"with_cast":   "true",
	}
	if err := c.get(ctx, "movie_details.json", q, &env); err != nil {
		return domain.Movie{}, providerx.Wrap(name, "details", err)
	}
	if env.Data.Movie.ID == 0 {
		return domain.Movie{}, providerx.Wrap(name, "details", fmt.Errorf("movie_id=%d: %w", movieID, providerx.ErrNotFound))
	}
	return env.Data.Movie, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q map[string]string, out any) error {
	if c.HTTP == nil {
		return errors.New("http client 不能为空")
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return errors.New("base url 不能为空")
	}

	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(q).
		Get(base + "/api/v2/" + endpoint)
	if err != nil {
		return err
	}
	if err := providerx.CheckResponse(resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("解析 %s 响应失败：%w", endpoint, err)
	}
	return nil
}
