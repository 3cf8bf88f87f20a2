package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kompoti121/kompoti/internal/app/run"
	"github.com/kompoti121/kompoti/internal/domain"
)

var _ run.Observer = (*logObserver)(nil)

// logObserver 把周期事件转成结构化日志。
//
// - 新电影/新字幕/失败逐条 info 或 warn；unchanged/skipped 只在 debug 级别出现
// - 周期结束输出一行汇总，并累计进程内的总变更数
type logObserver struct {
	log zerolog.Logger

	mu           sync.Mutex
	cycles       int
	totalChanges int
}

func newLogObserver(log zerolog.Logger) *logObserver {
	return &logObserver{log: log}
}

func (o *logObserver) OnCycleStart(cycleID string, started time.Time) {
	o.mu.Lock()
	o.cycles++
	n := o.cycles
	o.mu.Unlock()

	o.log.Info().
		Str("cycle_id", cycleID).
		Int("cycle", n).
		Time("started_at", started).
		Msg("周期开始")
}

func (o *logObserver) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	var ev *zerolog.Event
	switch res.Status {
	case domain.StatusFailed:
		ev = o.log.Warn().
			Str("error_code", res.ErrorCode).
			Str("error", truncate(res.ErrorMsg, 160))
	case domain.StatusNewMovie, domain.StatusNewSubtitle:
		ev = o.log.Info()
	default:
		ev = o.log.Debug()
		if res.ErrorCode != "" {
			ev = ev.Str("error_code", res.ErrorCode)
		}
	}
	if res.Featured {
		ev = ev.Bool("featured", true)
	}
	ev.Str("progress", progress(idx+1, total)).
		Str("imdb_id", res.IMDbID).
		Int("subtitle_id", res.SubtitleID).
		Str("title", truncate(res.Title, 80)).
		Str("took", formatShortDuration(dur)).
		Msg(statusLabel(res.Status))
}

func (o *logObserver) OnCycleDone(rep domain.CycleReport, dur time.Duration) {
	s := rep.Summary

	o.mu.Lock()
	o.totalChanges += s.Changes()
	total := o.totalChanges
	o.mu.Unlock()

	ev := o.log.Info()
	if rep.FetchError != "" {
		ev = o.log.Warn().Str("fetch_error", truncate(rep.FetchError, 160))
	}
	ev.Str("cycle_id", rep.CycleID).
		Int("candidates", s.Candidates).
		Int("new_movies", s.NewMovies).
		Int("new_subtitles", s.NewSubtitles).
		Int("unchanged", s.Unchanged).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("changes_total", total).
		Str("took", formatShortDuration(dur)).
		Msg("周期结束")
}

func statusLabel(status string) string {
	switch status {
	case domain.StatusNewMovie:
		return "新电影"
	case domain.StatusNewSubtitle:
		return "新字幕"
	case domain.StatusUnchanged:
		return "无变化"
	case domain.StatusSkipped:
		return "跳过"
	case domain.StatusFailed:
		return "失败"
	default:
		return strings.ToUpper(status)
	}
}

func progress(idx, total int) string {
	return fmt.Sprintf("%d/%d", idx, total)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
