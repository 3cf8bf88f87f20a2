package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/kompoti121/kompoti/internal/domain"
)

func intPtr(v int) *int { return &v }

func rawMovie() domain.Movie {
	return domain.Movie{
		ID:                      101,
		URL:                     "https://yts.example/movies/some-movie-2025",
		IMDbCode:                "tt9999999",
		Title:                   "  Some\tMovie \n",
		Year:                    2025,
		Genres:                  []string{"Drama"},
		DescriptionFull:         "Line one.\n\nLine\ttwo.  ",
		BackgroundImage:         "https://yts.example/assets/images/movies/x/background.jpg",
		BackgroundImageOriginal: "https://yts.example/assets/images/movies/x/background_original.jpg",
		SmallCoverImage:         "https://yts.example/assets/images/movies/x/small-cover.jpg",
		MediumCoverImage:        "https://yts.example/assets/images/movies/x/medium-cover.jpg",
		LargeCoverImage:         "https://cdn.other/large-cover.jpg",
		MediumScreenshotImage1:  "https://yts.example/assets/images/movies/x/medium-screenshot1.jpg",
		LargeScreenshotImage1:   "https://yts.example/assets/images/movies/x/large-screenshot1.jpg",
		LargeScreenshotImage3:   "/already/relative.jpg",
		Torrents: []domain.Torrent{
			{
				URL:              "https://yts.example/torrent/download/ABC",
				Hash:             "ABC",
				Quality:          "1080p",
				Seeds:            intPtr(12),
				Peers:            intPtr(3),
				DateUploaded:     "2025-01-01 00:00:00",
				DateUploadedUnix: 1735689600,
			},
			{
				URL:     "magnet:?xt=urn:btih:DEF",
				Hash:    "DEF",
				Quality: "720p",
				Seeds:   intPtr(0),
			},
		},
		DateUploaded:     "2025-01-01 00:00:00",
		DateUploadedUnix: 1735689600,
	}
}

func TestRelativeURL(t *testing.T) {
	cases := []struct {
		name string
		u    string
		base string
		want string
	}{
		{"same host", "https://example.com/img/a.png", "https://example.com", "/img/a.png"},
		{"unrelated host", "https://cdn.other/a.png", "https://example.com", "https://cdn.other/a.png"},
		{"base with trailing slash", "https://example.com/img/a.png", "https://example.com/", "/img/a.png"},
		{"already relative", "/img/a.png", "https://example.com", "/img/a.png"},
		{"host prefix but different domain", "https://example.com.cn/a.png", "https://example.com", "https://example.com.cn/a.png"},
		{"empty url", "", "https://example.com", ""},
		{"empty base", "https://example.com/a", "", "https://example.com/a"},
		{"query only", "https://example.com?x=1", "https://example.com", "?x=1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RelativeURL(tc.u, tc.base))
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a\n\tb   c \n"))
	assert.Equal(t, "", CleanText(" \n\t "))
}

func TestMovie_RelativizesAndPrunes(t *testing.T) {
	in := rawMovie()
	got := Movie(in, "https://yts.example")

	assert.Equal(t, "/movies/some-movie-2025", got.URL)
	assert.Equal(t, "/assets/images/movies/x/background.jpg", got.BackgroundImage)
	assert.Equal(t, "/assets/images/movies/x/small-cover.jpg", got.SmallCoverImage)
	assert.Equal(t, "https://cdn.other/large-cover.jpg", got.LargeCoverImage)
	assert.Equal(t, "/assets/images/movies/x/medium-screenshot1.jpg", got.MediumScreenshotImage1)
	assert.Equal(t, "/already/relative.jpg", got.LargeScreenshotImage3)

	assert.Empty(t, got.BackgroundImageOriginal)
	assert.Empty(t, got.DateUploaded)
	assert.Zero(t, got.DateUploadedUnix)

	assert.Equal(t, "/torrent/download/ABC", got.Torrents[0].URL)
	assert.Equal(t, "magnet:?xt=urn:btih:DEF", got.Torrents[1].URL)
	for _, tr := range got.Torrents {
		assert.Nil(t, tr.Seeds)
		assert.Nil(t, tr.Peers)
		assert.Empty(t, tr.DateUploaded)
		assert.Zero(t, tr.DateUploadedUnix)
	}

	assert.Equal(t, "Some Movie", got.Title)
	assert.Equal(t, "Line one. Line two.", got.DescriptionFull)
}

func TestMovie_DoesNotMutateInput(t *testing.T) {
	in := rawMovie()
	before := rawMovie()
	_ = Movie(in, "https://yts.example")

	if diff := cmp.Diff(before, in); diff != "" {
		t.Fatalf("Movie 修改了输入（-before +after）：\n%s", diff)
	}
}

func TestMovie_Idempotent(t *testing.T) {
	for _, base := range []string{"https://yts.example", "https://other.example", ""} {
		once := Movie(rawMovie(), base)
		twice := Movie(once, base)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("base=%q 归一化不幂等（-once +twice）：\n%s", base, diff)
		}
	}
}

func TestEntry_NilMovieNoop(t *testing.T) {
	e := &domain.Entry{Title: "x"}
	Entry(e, "https://yts.example")
	assert.Nil(t, e.Movie)

	m := rawMovie()
	e.Movie = &m
	Entry(e, "https://yts.example")
	assert.Equal(t, "/movies/some-movie-2025", e.Movie.URL)
}
