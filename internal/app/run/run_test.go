package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kompoti121/kompoti/internal/app/merge"
	"github.com/kompoti121/kompoti/internal/domain"
	"github.com/kompoti121/kompoti/internal/enrich"
	"github.com/kompoti121/kompoti/internal/feed"
)

type fakeListing struct {
	fetchErr error
	parseErr error
	cands    []domain.Candidate
	fetches  int
	panicAt  int
}

func (f *fakeListing) Fetch(ctx context.Context) ([]byte, error) {
	f.fetches++
	if f.panicAt > 0 && f.fetches == f.panicAt {
		panic("boom")
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return []byte("<html></html>"), nil
}

func (f *fakeListing) Parse(html []byte) ([]domain.Candidate, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.cands, nil
}

type fakeEnricher struct{ calls int }

func (f *fakeEnricher) Enrich(ctx context.Context, id domain.IMDbID) (*enrich.Result, error) {
	f.calls++
	return &enrich.Result{Movie: domain.Movie{
		ID:       1,
		IMDbCode: id,
		Title:    "Film",
		Year:     2020,
		URL:      "https://yts.example/movies/film",
	}}, nil
}

type fakeWriter struct {
	err      error
	catalogs int
	feeds    []feed.Feed
	snapshot *domain.Catalog
}

func (w *fakeWriter) SaveCatalog(cat *domain.Catalog) error {
	if w.err != nil {
		return w.err
	}
	w.catalogs++
	w.snapshot = cat
	return nil
}

func (w *fakeWriter) SaveFeed(f feed.Feed) error {
	w.feeds = append(w.feeds, f)
	return nil
}

type recordingObserver struct {
	starts []string
	items  []domain.ItemResult
	done   []domain.CycleReport
}

func (o *recordingObserver) OnCycleStart(id string, _ time.Time) { o.starts = append(o.starts, id) }
func (o *recordingObserver) OnItemDone(_, _ int, res domain.ItemResult, _ time.Duration) {
	o.items = append(o.items, res)
}
func (o *recordingObserver) OnCycleDone(rep domain.CycleReport, _ time.Duration) {
	o.done = append(o.done, rep)
}

func cand(id string, sub int) domain.Candidate {
	return domain.Candidate{SubtitleID: sub, MovieTitle: "Film", Filename: "Film.2020", IMDbID: id, DownloadLink: "https://dl/" + id}
}

func newTestRunner(l ListingSource, w CatalogWriter, en merge.Enricher) *Runner {
	now := func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return &Runner{
		Listing:  l,
		Engine:   &merge.Engine{Enricher: en, Featured: merge.DefaultFeaturedRule(), Now: now, Log: zerolog.Nop()},
		Store:    w,
		BaseURL:  "https://yts.example",
		FeedSize: feed.DefaultSize,
		Log:      zerolog.Nop(),
		NewID:    func() string { return "cycle-1" },
		Now:      now,
	}
}

func TestCycle_FetchErrorIsEmptyCycle(t *testing.T) {
	w := &fakeWriter{}
	en := &fakeEnricher{}
	obs := &recordingObserver{}
	r := newTestRunner(&fakeListing{fetchErr: errors.New("down")}, w, en)
	r.Observer = obs

	rep, err := r.Cycle(context.Background(), domain.NewCatalog(""))
	require.NoError(t, err)
	assert.Equal(t, "down", rep.FetchError)
	assert.Equal(t, "cycle-1", rep.CycleID)
	assert.Empty(t, rep.Items)
	assert.Zero(t, w.catalogs)
	assert.Zero(t, en.calls)
	assert.Equal(t, []string{"cycle-1"}, obs.starts)
	require.Len(t, obs.done, 1)
}

func TestCycle_ParseErrorIsEmptyCycle(t *testing.T) {
	w := &fakeWriter{}
	r := newTestRunner(&fakeListing{parseErr: errors.New("bad html")}, w, &fakeEnricher{})

	rep, err := r.Cycle(context.Background(), domain.NewCatalog(""))
	require.NoError(t, err)
	assert.Equal(t, "bad html", rep.FetchError)
	assert.Zero(t, w.catalogs)
}

func TestCycle_PersistRenormalizesAndSetsBaseURL(t *testing.T) {
	cat := domain.NewCatalog("https://old.example")
	// 旧条目仍带着绝对 URL，落盘前应按当前域名重新相对化。
	cat.Insert("tt1", &domain.Entry{
		Title:        "Old",
		SubtitleList: []domain.SubtitleItem{{ID: 1}},
		FirstSeenAt:  domain.NewTimestamp(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		Movie:        &domain.Movie{ID: 9, URL: "https://yts.example/movies/old"},
	})
	w := &fakeWriter{}
	obs := &recordingObserver{}
	r := newTestRunner(&fakeListing{cands: []domain.Candidate{cand("tt2", 2), cand("tt1", 3)}}, w, &fakeEnricher{})
	r.Observer = obs

	rep, err := r.Cycle(context.Background(), cat)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.NewMovies)
	assert.Equal(t, 1, rep.Summary.NewSubtitles)
	assert.Len(t, obs.items, 2)

	assert.Equal(t, 1, w.catalogs)
	assert.Equal(t, "https://yts.example", w.snapshot.BaseURL)
	old, _ := w.snapshot.Get("tt1")
	assert.Equal(t, "/movies/old", old.Movie.URL)
	fresh, _ := w.snapshot.Get("tt2")
	assert.Equal(t, "/movies/film", fresh.Movie.URL)

	require.Len(t, w.feeds, 1)
	assert.Equal(t, "https://yts.example", w.feeds[0].YTSURL)
	require.Len(t, w.feeds[0].Movies, 2)
	assert.Equal(t, "Film", w.feeds[0].Movies[0].Title)
}

func TestCycle_WriteErrorIsFatal(t *testing.T) {
	w := &fakeWriter{err: errors.New("disk full")}
	r := newTestRunner(&fakeListing{cands: []domain.Candidate{cand("tt2", 2)}}, w, &fakeEnricher{})

	_, err := r.Cycle(context.Background(), domain.NewCatalog(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)

	err = r.Loop(context.Background(), domain.NewCatalog(""), false)
	assert.ErrorIs(t, err, ErrWrite)
}

func TestLoop_Once(t *testing.T) {
	l := &fakeListing{}
	r := newTestRunner(l, &fakeWriter{}, &fakeEnricher{})
	r.Sleep = func(context.Context, time.Duration) error {
		t.Fatalf("once 模式不应进入等待")
		return nil
	}
	require.NoError(t, r.Loop(context.Background(), domain.NewCatalog(""), true))
	assert.Equal(t, 1, l.fetches)
}

func TestLoop_RecoversPanicAndStopsOnCancel(t *testing.T) {
	l := &fakeListing{panicAt: 1}
	r := newTestRunner(l, &fakeWriter{}, &fakeEnricher{})
	r.Interval = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var waits []time.Duration
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		if len(waits) == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	err := r.Loop(ctx, domain.NewCatalog(""), false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, l.fetches, "panic 之后循环应继续")
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, waits)
}

func TestLoop_DefaultInterval(t *testing.T) {
	r := newTestRunner(&fakeListing{}, &fakeWriter{}, &fakeEnricher{})
	ctx, cancel := context.WithCancel(context.Background())
	var got time.Duration
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		got = d
		cancel()
		return ctx.Err()
	}
	assert.ErrorIs(t, r.Loop(ctx, domain.NewCatalog(""), false), context.Canceled)
	assert.Equal(t, DefaultInterval, got)
}
