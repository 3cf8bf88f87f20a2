package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusNewMovie    = "new_movie"
	StatusNewSubtitle = "new_subtitle"
	StatusUnchanged   = "unchanged"
	StatusSkipped     = "skipped"
	StatusFailed      = "failed"
)

const (
	ErrCodeMissingIMDbID = "missing_imdb_id"
	ErrCodeNotFound      = "not_found"
	ErrCodeEnrichFailed  = "enrich_failed"
	ErrCodeFetchFailed   = "fetch_failed"
	ErrCodeParseFailed   = "parse_failed"
)

// CycleReport 描述一次同步周期的结果（日志与观察者消费；不落盘）。
type CycleReport struct {
	CycleID string `json:"cycle_id"`
	BaseURL string `json:"base_url"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// FetchError 非空表示本周期没有拿到列表页（整周期视为无数据）。
	FetchError string `json:"fetch_error,omitempty"`

	Summary CycleSummary `json:"summary"`
	Items   []ItemResult `json:"items"`
}

type CycleSummary struct {
	Candidates   int `json:"candidates"`
	NewMovies    int `json:"new_movies"`
	NewSubtitles int `json:"new_subtitles"`
	Unchanged    int `json:"unchanged"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// Changes 是本周期对目录的修改次数；为 0 时不落盘。
func (s CycleSummary) Changes() int { return s.NewMovies + s.NewSubtitles }

type ItemResult struct {
	IMDbID     string `json:"imdb_id"`
	SubtitleID int    `json:"subtitle_id"`
	Title      string `json:"title"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
	Featured  bool   `json:"featured,omitempty"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC
// 2) summary 由 items 计算得出（items 保持列表页文档顺序，不排序）
func (r *CycleReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	s := CycleSummary{Candidates: len(r.Items)}
	for _, it := range r.Items {
		switch it.Status {
		case StatusNewMovie:
			s.NewMovies++
		case StatusNewSubtitle:
			s.NewSubtitles++
		case StatusUnchanged:
			s.Unchanged++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 保证 items 为空时输出 [] 而不是 null。
func (r CycleReport) MarshalJSON() ([]byte, error) {
	type Alias CycleReport
	a := Alias(r)
	if a.Items == nil {
		a.Items = []ItemResult{}
	}
	return json.Marshal(a)
}
