// Package merge 把一次列表页解析结果与持久化目录对账。
//
// 每条候选记录只会落入一种结果：
//   - 没有 IMDb ID：跳过
//   - 目录里没有该 ID：扩充成功则新建条目，失败则丢弃（下个周期自然重试）
//   - 目录里有该 ID、没有该字幕 ID：追加字幕
//   - 都有：无操作
//
// 目录只增不减：已有条目的标题、年份、元数据与精选标记都不会被改写。
package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kompoti121/kompoti/internal/domain"
	"github.com/kompoti121/kompoti/internal/enrich"
	"github.com/kompoti121/kompoti/internal/infra/logx"
	"github.com/kompoti121/kompoti/internal/normalize"
	providerx "github.com/kompoti121/kompoti/internal/provider"
)

// Enricher 是扩充编排器（*enrich.Orchestrator 满足该接口）。
type Enricher interface {
	Enrich(ctx context.Context, imdbID domain.IMDbID) (*enrich.Result, error)
}

// Engine 是目录合并状态机。
type Engine struct {
	Enricher Enricher
	Featured FeaturedRule
	// Now 为 nil 时使用 time.Now。
	Now func() time.Time
	// OnItem 在每条候选记录处理完后调用（可为 nil）。
	OnItem func(idx, total int, res domain.ItemResult, dur time.Duration)
	Log    zerolog.Logger
}

// Result 是一次合并的统计。
type Result struct {
	// Changes = 新电影数 + 新字幕数；为 0 时上层不落盘。
	Changes int
	// Items 与输入候选一一对应（保持页面顺序）。
	Items []domain.ItemResult
}

// Merge 按顺序处理候选记录并原地修改 cat。
//
// ctx 取消时停止处理剩余记录，已完成的修改保留在 cat 中。
func (e *Engine) Merge(ctx context.Context, cat *domain.Catalog, cands []domain.Candidate) Result {
	res := Result{Items: make([]domain.ItemResult, 0, len(cands))}
	if cat.Entries == nil {
		cat.Entries = make(map[domain.IMDbID]*domain.Entry)
	}
	log := logx.FromContext(ctx, e.Log)

	// 本周期内扩充失败过的 ID：同一页面的重复行不再重复请求上游。
	failed := make(map[domain.IMDbID]string)

	for i, c := range cands {
		if ctx.Err() != nil {
			break
		}
		started := time.Now()
		it := e.mergeOne(ctx, cat, c, failed, log)
		if it.Status == domain.StatusNewMovie || it.Status == domain.StatusNewSubtitle {
			res.Changes++
		}
		res.Items = append(res.Items, it)
		if e.OnItem != nil {
			e.OnItem(i, len(cands), it, time.Since(started))
		}
	}
	return res
}

func (e *Engine) mergeOne(ctx context.Context, cat *domain.Catalog, c domain.Candidate, failed map[domain.IMDbID]string, log zerolog.Logger) domain.ItemResult {
	title := normalize.CleanText(c.MovieTitle)
	it := domain.ItemResult{
		IMDbID:     c.IMDbID,
		SubtitleID: c.SubtitleID,
		Title:      title,
	}

	id, ok := domain.ParseIMDbID(c.IMDbID)
	if !ok {
		it.Status = domain.StatusSkipped
		it.ErrorCode = domain.ErrCodeMissingIMDbID
		return it
	}
	it.IMDbID = id

	if entry, ok := cat.Get(id); ok {
		if entry.AddSubtitle(c.Item()) {
			it.Status = domain.StatusNewSubtitle
			log.Info().Str("imdb_id", id).Int("subtitle_id", c.SubtitleID).Msg("已有电影新增字幕")
		} else {
			it.Status = domain.StatusUnchanged
		}
		return it
	}

	if code, ok := failed[id]; ok {
		it.Status = domain.StatusFailed
		it.ErrorCode = code
		it.ErrorMsg = "本周期内扩充已失败，跳过"
		return it
	}

	if e.Enricher == nil {
		it.Status = domain.StatusFailed
		it.ErrorCode = domain.ErrCodeEnrichFailed
		it.ErrorMsg = "未配置扩充器"
		failed[id] = it.ErrorCode
		return it
	}

	er, err := e.Enricher.Enrich(ctx, id)
	if err != nil {
		it.Status = domain.StatusFailed
		it.ErrorCode = domain.ErrCodeEnrichFailed
		if providerx.IsNotFound(err) {
			it.ErrorCode = domain.ErrCodeNotFound
		}
		it.ErrorMsg = err.Error()
		failed[id] = it.ErrorCode
		log.Warn().Err(err).Str("imdb_id", id).Str("title", title).Str("error_code", it.ErrorCode).Msg("新电影扩充失败，本周期丢弃")
		return it
	}

	now := e.now()
	movie := er.Movie
	votes := 0
	if er.Title != nil {
		votes = er.Title.VoteCount
	}
	featured := er.Title != nil && e.Featured.Match(movie.Year, votes, now)

	entry := &domain.Entry{
		Title:        title,
		Year:         movie.Year,
		SubtitleList: []domain.SubtitleItem{c.Item()},
		FirstSeenAt:  domain.NewTimestamp(now),
		IsFeatured:   featured,
		Movie:        &movie,
	}
	if !cat.Insert(id, entry) {
		// 不应发生：上面已确认 ID 不存在。
		it.Status = domain.StatusFailed
		it.ErrorCode = domain.ErrCodeEnrichFailed
		it.ErrorMsg = fmt.Sprintf("目录已存在 %s", id)
		return it
	}

	it.Status = domain.StatusNewMovie
	it.Featured = featured
	ev := log.Info().Str("imdb_id", id).Str("title", title).Int("year", movie.Year)
	if featured {
		ev = ev.Int("votes", votes).Bool("featured", true)
	}
	ev.Msg("新电影入库")
	return it
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
