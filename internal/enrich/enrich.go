// Package enrich 把一个 IMDb ID 扩充为可入库的电影元数据。
//
// 顺序固定且严格串行：
//
//	停顿 -> 查找 -> 详情 -> 停顿 -> 剧情（失败可容忍）-> 翻译（失败回退原文）-> 归一化
//
// 查找/详情失败即整体失败；剧情与翻译只会让结果“少一点”，不会让结果失败。
package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kompoti121/kompoti/internal/domain"
	"github.com/kompoti121/kompoti/internal/infra/logx"
	"github.com/kompoti121/kompoti/internal/normalize"
)

// MovieSource 是电影/种子元数据源（YTS）。
type MovieSource interface {
	Lookup(ctx context.Context, imdbID domain.IMDbID) (int, error)
	Details(ctx context.Context, movieID int) (domain.Movie, error)
}

// PlotSource 是剧情/评分元数据源（imdbapi.dev）。
type PlotSource interface {
	Title(ctx context.Context, imdbID domain.IMDbID) (domain.TitleInfo, error)
}

// Translator 把剧情翻译成目标语言。
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Result 是一次成功扩充的产物。
type Result struct {
	Movie domain.Movie
	// Title 为 nil 表示剧情源失败；非 nil 时 VoteCount 可用于精选判断。
	Title *domain.TitleInfo
	// Translated 表示 DescriptionFull 来自翻译结果。
	Translated bool
}

// Orchestrator 编排各元数据源。零值不可用：Movies 必须设置。
type Orchestrator struct {
	Movies MovieSource
	Plots  PlotSource // nil 表示不查剧情
	// Translator 为 nil 表示未配置凭据，静默跳过翻译。
	Translator Translator

	// BaseURL 是当前源站域名，用于相对化 URL。
	BaseURL string

	LookupDelay time.Duration
	PlotDelay   time.Duration
	// Sleep 可注入（测试用零延迟或记录调用）；nil 时使用 SleepContext。
	Sleep func(ctx context.Context, d time.Duration) error

	Log zerolog.Logger
}

// Enrich 执行完整扩充流程。
func (o *Orchestrator) Enrich(ctx context.Context, imdbID domain.IMDbID) (*Result, error) {
	if o.Movies == nil {
		return nil, errors.New("movie source 不能为空")
	}
	log := logx.FromContext(ctx, o.Log).With().Str("imdb_id", imdbID).Logger()

	if err := o.pause(ctx, o.LookupDelay); err != nil {
		return nil, err
	}
	movieID, err := o.Movies.Lookup(ctx, imdbID)
	if err != nil {
		return nil, err
	}
	movie, err := o.Movies.Details(ctx, movieID)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if o.Plots != nil {
		if err := o.pause(ctx, o.PlotDelay); err != nil {
			return nil, err
		}
		info, err := o.Plots.Title(ctx, imdbID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Msg("剧情源失败，保留原简介")
		} else {
			res.Title = &info
		}
	}

	if res.Title != nil && strings.TrimSpace(res.Title.Plot) != "" {
		plot := res.Title.Plot
		movie.DescriptionFull = plot
		if o.Translator != nil {
			translated, err := o.Translator.Translate(ctx, plot)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warn().Err(err).Msg("翻译失败，使用原文")
			default:
				movie.DescriptionFull = translated
				res.Translated = true
			}
		}
	}

	res.Movie = normalize.Movie(movie, o.BaseURL)
	return res, nil
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if o.Sleep != nil {
		return o.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

// SleepContext 睡眠 d，ctx 取消时提前返回 ctx.Err()。
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
