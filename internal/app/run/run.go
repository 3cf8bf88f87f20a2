// Package run 驱动同步周期：抓取 -> 解析 -> 合并 -> （有变更时）落盘目录与 feed。
package run

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kompoti121/kompoti/internal/app/merge"
	"github.com/kompoti121/kompoti/internal/domain"
	"github.com/kompoti121/kompoti/internal/enrich"
	"github.com/kompoti121/kompoti/internal/feed"
	"github.com/kompoti121/kompoti/internal/infra/logx"
	"github.com/kompoti121/kompoti/internal/normalize"
)

// DefaultInterval 是守护模式下两次周期之间的间隔。
const DefaultInterval = 60 * time.Minute

// ListingSource 是列表页来源（*opensubtitles.Provider 满足该接口）。
type ListingSource interface {
	Fetch(ctx context.Context) ([]byte, error)
	Parse(html []byte) ([]domain.Candidate, error)
}

// CatalogWriter 是落盘端（*store.Store 满足该接口）。
type CatalogWriter interface {
	SaveCatalog(cat *domain.Catalog) error
	SaveFeed(f feed.Feed) error
}

// Runner 持有一个周期需要的全部依赖。目录本身由调用方持有并传入。
type Runner struct {
	Listing ListingSource
	Engine  *merge.Engine
	Store   CatalogWriter

	// BaseURL 是本进程确定的源站域名（相对化与 feed 的 yts_url 都用它）。
	BaseURL  string
	FeedSize int
	Interval time.Duration

	Observer Observer
	Log      zerolog.Logger

	// 以下字段可注入，nil 时使用默认实现。
	Sleep func(ctx context.Context, d time.Duration) error
	NewID func() string
	Now   func() time.Time
}

// ErrWrite 包装落盘失败；这类错误对进程是致命的。
var ErrWrite = errors.New("run: persist failed")

// Cycle 执行一个同步周期。
//
// 抓取/解析失败只记日志并产出空周期；只有落盘失败会返回错误。
func (r *Runner) Cycle(ctx context.Context, cat *domain.Catalog) (domain.CycleReport, error) {
	id := r.newID()
	ctx = logx.ContextWithCycleID(ctx, id)
	log := logx.FromContext(ctx, r.Log)

	started := r.now()
	rep := domain.CycleReport{
		CycleID:   id,
		BaseURL:   r.BaseURL,
		StartedAt: started,
		Items:     []domain.ItemResult{},
	}
	if r.Observer != nil {
		r.Observer.OnCycleStart(id, started)
	}
	finish := func() domain.CycleReport {
		rep.FinishedAt = r.now()
		rep.Finalize()
		if r.Observer != nil {
			r.Observer.OnCycleDone(rep, rep.FinishedAt.Sub(rep.StartedAt))
		}
		return rep
	}

	html, err := r.Listing.Fetch(ctx)
	if err != nil {
		rep.FetchError = err.Error()
		log.Error().Err(err).Str("error_code", domain.ErrCodeFetchFailed).Msg("抓取列表页失败，本周期跳过")
		return finish(), nil
	}
	cands, err := r.Listing.Parse(html)
	if err != nil {
		rep.FetchError = err.Error()
		log.Error().Err(err).Str("error_code", domain.ErrCodeParseFailed).Msg("解析列表页失败，本周期跳过")
		return finish(), nil
	}
	log.Debug().Int("candidates", len(cands)).Msg("列表页解析完成")

	eng := *r.Engine
	if r.Observer != nil {
		eng.OnItem = r.Observer.OnItemDone
	}
	res := eng.Merge(ctx, cat, cands)
	rep.Items = res.Items

	if res.Changes == 0 {
		log.Info().Msg("没有新内容")
		return finish(), nil
	}
	if err := r.persist(cat); err != nil {
		return finish(), err
	}
	log.Info().Int("changes", res.Changes).Int("entries", cat.Len()).Msg("目录与 feed 已保存")
	return finish(), nil
}

// persist 先把全部条目按当前域名重新归一化，再写目录与 feed。
func (r *Runner) persist(cat *domain.Catalog) error {
	for _, id := range cat.IDs() {
		normalize.Entry(cat.Entries[id], r.BaseURL)
	}
	cat.BaseURL = r.BaseURL

	if err := r.Store.SaveCatalog(cat); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := r.Store.SaveFeed(feed.Build(cat, r.FeedSize)); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// Loop 重复执行周期直到 ctx 取消；once=true 时只跑一个周期。
//
// 周期内的 panic 会被恢复并记录，循环继续；落盘失败直接返回。
func (r *Runner) Loop(ctx context.Context, cat *domain.Catalog, once bool) error {
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	for {
		if err := r.safeCycle(ctx, cat); err != nil {
			return err
		}
		if once {
			return nil
		}
		r.Log.Info().Dur("interval", interval).Msg("等待下一个周期")
		if err := r.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (r *Runner) safeCycle(ctx context.Context, cat *domain.Catalog) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.Log.Error().
				Str("panic", fmt.Sprint(p)).
				Bytes("stack", debug.Stack()).
				Msg("周期内发生 panic，已恢复")
			err = nil
		}
	}()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_, err = r.Cycle(ctx, cat)
	return err
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return enrich.SleepContext(ctx, d)
}

func (r *Runner) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
