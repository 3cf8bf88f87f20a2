package merge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kompoti121/kompoti/internal/domain"
	"github.com/kompoti121/kompoti/internal/enrich"
	providerx "github.com/kompoti121/kompoti/internal/provider"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeEnricher struct {
	results map[string]*enrich.Result
	calls   map[string]int
}

func newFakeEnricher() *fakeEnricher {
	return &fakeEnricher{results: map[string]*enrich.Result{}, calls: map[string]int{}}
}

func (f *fakeEnricher) add(id string, year, votes int) {
	f.results[id] = &enrich.Result{
		Movie: domain.Movie{ID: len(f.results) + 1, IMDbCode: id, Title: "M " + id, Year: year},
		Title: &domain.TitleInfo{ID: id, VoteCount: votes},
	}
}

func (f *fakeEnricher) Enrich(_ context.Context, id domain.IMDbID) (*enrich.Result, error) {
	f.calls[id]++
	if r, ok := f.results[id]; ok {
		return r, nil
	}
	return nil, providerx.Wrap("yts", "lookup", fmt.Errorf("%s: %w", id, providerx.ErrNotFound))
}

func newEngine(en Enricher) *Engine {
	return &Engine{
		Enricher: en,
		Featured: DefaultFeaturedRule(),
		Now:      func() time.Time { return fixedNow },
		Log:      zerolog.Nop(),
	}
}

func cand(subID int, imdb, title string) domain.Candidate {
	return domain.Candidate{
		SubtitleID:   subID,
		MovieTitle:   title,
		Filename:     fmt.Sprintf("%s.srt", title),
		IMDbID:       imdb,
		DownloadLink: fmt.Sprintf("https://dl.example/sub/%d", subID),
	}
}

func statuses(items []domain.ItemResult) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Status)
	}
	return out
}

func TestMerge_NewMovieThenNewSubtitle(t *testing.T) {
	en := newFakeEnricher()
	en.add("tt100", 2024, 100)
	eng := newEngine(en)
	cat := domain.NewCatalog("https://yts.example")

	res := eng.Merge(context.Background(), cat, []domain.Candidate{cand(500, "tt100", "Film A (2024)")})
	require.Equal(t, 1, res.Changes)
	e, ok := cat.Get("tt100")
	require.True(t, ok)
	assert.Equal(t, "Film A (2024)", e.Title)
	assert.Equal(t, 2024, e.Year)
	assert.Equal(t, []domain.SubtitleItem{{ID: 500, Filename: "Film A (2024).srt", DownloadLink: "https://dl.example/sub/500"}}, e.SubtitleList)
	assert.Equal(t, domain.NewTimestamp(fixedNow), e.FirstSeenAt)
	require.NotNil(t, e.Movie)

	res = eng.Merge(context.Background(), cat, []domain.Candidate{cand(501, "tt100", "Film A (2024)")})
	assert.Equal(t, 1, res.Changes)
	assert.Equal(t, []string{domain.StatusNewSubtitle}, statuses(res.Items))
	assert.Len(t, e.SubtitleList, 2)
	assert.Equal(t, 1, en.calls["tt100"], "已有电影不应再次扩充")
}

func TestMerge_Idempotent(t *testing.T) {
	en := newFakeEnricher()
	en.add("tt1", 2020, 0)
	en.add("tt2", 2021, 0)
	eng := newEngine(en)
	cat := domain.NewCatalog("")
	cands := []domain.Candidate{cand(1, "tt1", "A"), cand(2, "tt2", "B"), cand(3, "tt1", "A")}

	first := eng.Merge(context.Background(), cat, cands)
	require.Equal(t, 3, first.Changes)
	snapshot := cloneCatalog(cat)

	second := eng.Merge(context.Background(), cat, cands)
	assert.Equal(t, 0, second.Changes)
	assert.Equal(t, []string{domain.StatusUnchanged, domain.StatusUnchanged, domain.StatusUnchanged}, statuses(second.Items))
	if diff := cmp.Diff(snapshot, cloneCatalog(cat)); diff != "" {
		t.Fatalf("第二次合并修改了目录 (-before +after):\n%s", diff)
	}
}

func TestMerge_SubtitleIDsUniquePerEntry(t *testing.T) {
	en := newFakeEnricher()
	en.add("tt1", 2020, 0)
	eng := newEngine(en)
	cat := domain.NewCatalog("")

	res := eng.Merge(context.Background(), cat, []domain.Candidate{
		cand(7, "tt1", "A"), cand(7, "tt1", "A"), cand(8, "tt1", "A"), cand(7, "tt1", "A"),
	})
	assert.Equal(t, 2, res.Changes)
	e, _ := cat.Get("tt1")
	ids := []int{}
	for _, s := range e.SubtitleList {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int{7, 8}, ids)
}

func TestMerge_MissingIMDbIDSkipped(t *testing.T) {
	en := newFakeEnricher()
	eng := newEngine(en)
	cat := domain.NewCatalog("")

	res := eng.Merge(context.Background(), cat, []domain.Candidate{cand(1, "", "A"), cand(2, "nm123", "B")})
	assert.Equal(t, 0, res.Changes)
	assert.Equal(t, []string{domain.StatusSkipped, domain.StatusSkipped}, statuses(res.Items))
	assert.Equal(t, domain.ErrCodeMissingIMDbID, res.Items[0].ErrorCode)
	assert.Zero(t, cat.Len())
	assert.Empty(t, en.calls)
}

func TestMerge_EnrichFailureDropsAndRetriesNextCycle(t *testing.T) {
	en := newFakeEnricher()
	eng := newEngine(en)
	cat := domain.NewCatalog("")
	cands := []domain.Candidate{cand(1, "tt9", "Missing"), cand(2, "tt9", "Missing")}

	res := eng.Merge(context.Background(), cat, cands)
	assert.Equal(t, 0, res.Changes)
	assert.Equal(t, []string{domain.StatusFailed, domain.StatusFailed}, statuses(res.Items))
	assert.Equal(t, domain.ErrCodeNotFound, res.Items[0].ErrorCode)
	assert.Equal(t, domain.ErrCodeNotFound, res.Items[1].ErrorCode)
	assert.Equal(t, 1, en.calls["tt9"], "同一周期内失败的 ID 不应重复扩充")
	assert.Zero(t, cat.Len())

	// 下个周期上游恢复：自然重试成功。
	en.add("tt9", 2019, 0)
	res = eng.Merge(context.Background(), cat, cands)
	assert.Equal(t, 2, res.Changes)
	assert.Equal(t, []string{domain.StatusNewMovie, domain.StatusNewSubtitle}, statuses(res.Items))
	assert.Equal(t, 2, en.calls["tt9"])
}

type errEnricher struct{ err error }

func (e errEnricher) Enrich(context.Context, domain.IMDbID) (*enrich.Result, error) {
	return nil, e.err
}

func TestMerge_GenericEnrichFailureCode(t *testing.T) {
	eng := newEngine(errEnricher{err: errors.New("HTTP 502")})
	res := eng.Merge(context.Background(), domain.NewCatalog(""), []domain.Candidate{cand(1, "tt1", "A")})
	require.Len(t, res.Items, 1)
	assert.Equal(t, domain.ErrCodeEnrichFailed, res.Items[0].ErrorCode)
	assert.Equal(t, "HTTP 502", res.Items[0].ErrorMsg)
}

func TestMerge_Monotonic(t *testing.T) {
	en := newFakeEnricher()
	en.add("tt1", 2020, 0)
	en.add("tt2", 2021, 0)
	eng := newEngine(en)
	cat := domain.NewCatalog("")
	eng.Merge(context.Background(), cat, []domain.Candidate{cand(1, "tt1", "A"), cand(2, "tt1", "A")})
	before := cloneCatalog(cat)

	// 新页面不再包含旧字幕，只带来一部新电影。
	eng.Merge(context.Background(), cat, []domain.Candidate{cand(3, "tt2", "B")})

	for id, old := range before.Entries {
		cur, ok := cat.Get(id)
		require.True(t, ok, "条目 %s 不应被删除", id)
		require.GreaterOrEqual(t, len(cur.SubtitleList), len(old.SubtitleList))
		assert.Equal(t, old.SubtitleList, cur.SubtitleList[:len(old.SubtitleList)])
		assert.Equal(t, old.FirstSeenAt, cur.FirstSeenAt)
	}
	assert.Equal(t, 2, cat.Len())
}

func TestMerge_FeaturedBoundary(t *testing.T) {
	en := newFakeEnricher()
	en.add("tt1", 2025, 7500)  // 等于阈值：不精选
	en.add("tt2", 2025, 7501)  // 严格大于：精选
	en.add("tt3", 2010, 99999) // 年份不在集合内
	en.add("tt4", 2026, 10000) // 今年
	en.add("tt5", 2024, 10000) // 前年
	eng := newEngine(en)
	cat := domain.NewCatalog("")

	res := eng.Merge(context.Background(), cat, []domain.Candidate{
		cand(1, "tt1", "A"), cand(2, "tt2", "B"), cand(3, "tt3", "C"), cand(4, "tt4", "D"), cand(5, "tt5", "E"),
	})
	require.Equal(t, 5, res.Changes)

	want := map[string]bool{"tt1": false, "tt2": true, "tt3": false, "tt4": true, "tt5": false}
	for id, w := range want {
		e, ok := cat.Get(id)
		require.True(t, ok)
		assert.Equal(t, w, e.IsFeatured, "%s", id)
	}
	assert.True(t, res.Items[1].Featured)
}

func TestMerge_FeaturedNeedsPlotSource(t *testing.T) {
	en := newFakeEnricher()
	en.results["tt1"] = &enrich.Result{Movie: domain.Movie{ID: 1, Year: 2026}}
	eng := newEngine(en)
	cat := domain.NewCatalog("")
	eng.Merge(context.Background(), cat, []domain.Candidate{cand(1, "tt1", "A")})
	e, _ := cat.Get("tt1")
	assert.False(t, e.IsFeatured)
}

func TestMerge_FeaturedComputedOnlyAtCreation(t *testing.T) {
	en := newFakeEnricher()
	en.add("tt1", 2026, 9000)
	eng := newEngine(en)
	cat := domain.NewCatalog("")
	eng.Merge(context.Background(), cat, []domain.Candidate{cand(1, "tt1", "A")})

	// 规则收紧后追加字幕：精选标记保持不变。
	eng.Featured = FeaturedRule{Years: []int{1999}, MinVotes: 1_000_000}
	eng.Merge(context.Background(), cat, []domain.Candidate{cand(2, "tt1", "A")})
	e, _ := cat.Get("tt1")
	assert.True(t, e.IsFeatured)
}

func TestMerge_ContextCancelledStops(t *testing.T) {
	en := newFakeEnricher()
	en.add("tt1", 2020, 0)
	eng := newEngine(en)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := eng.Merge(ctx, domain.NewCatalog(""), []domain.Candidate{cand(1, "tt1", "A")})
	assert.Empty(t, res.Items)
	assert.Zero(t, res.Changes)
}

func TestMerge_OnItemCallback(t *testing.T) {
	en := newFakeEnricher()
	en.add("tt1", 2020, 0)
	eng := newEngine(en)
	var got []string
	eng.OnItem = func(idx, total int, res domain.ItemResult, _ time.Duration) {
		got = append(got, fmt.Sprintf("%d/%d %s", idx+1, total, res.Status))
	}
	eng.Merge(context.Background(), domain.NewCatalog(""), []domain.Candidate{cand(1, "tt1", "A"), cand(2, "", "B")})
	assert.Equal(t, []string{"1/2 new_movie", "2/2 skipped"}, got)
}

func cloneCatalog(c *domain.Catalog) *domain.Catalog {
	out := domain.NewCatalog(c.BaseURL)
	for id, e := range c.Entries {
		cp := e.Clone()
		out.Entries[id] = &cp
	}
	return out
}
