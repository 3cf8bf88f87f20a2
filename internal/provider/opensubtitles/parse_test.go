package opensubtitles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kompoti121/kompoti/internal/domain"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return b
}

func TestParse_ListingFixture(t *testing.T) {
	p := &Provider{DownloadBase: "https://dl.example/sub/"}
	got, err := p.Parse(readFixture(t, "listing.html"))
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}

	want := []domain.Candidate{
		{
			SubtitleID:   9001,
			MovieTitle:   "The Long Night (2024)",
			Filename:     "The.Long.Night.2024.1080p.WEBRip.x264",
			IMDbID:       "tt1234567",
			DownloadLink: "https://dl.example/sub/9001",
		},
		{
			SubtitleID:   9002,
			MovieTitle:   "Some Movie (2024)",
			Filename:     "Some.Movie.2024.WEB",
			IMDbID:       "tt7654321",
			DownloadLink: "https://dl.example/sub/9002",
		},
		{
			SubtitleID:   9003,
			MovieTitle:   "Quiet Harbor (2023)",
			Filename:     "Quiet Harbor (2023)",
			IMDbID:       "tt0000042",
			DownloadLink: "https://dl.example/sub/9003",
		},
		{
			SubtitleID:   0,
			MovieTitle:   "Odd Row (2022)",
			Filename:     "Odd Row (2022)",
			IMDbID:       "tt3330003",
			DownloadLink: "https://dl.example/sub/0",
		},
		{
			SubtitleID:   9005,
			MovieTitle:   "No Imdb (2021)",
			Filename:     "No Imdb (2021)",
			IMDbID:       "",
			DownloadLink: "https://dl.example/sub/9005",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("候选记录不一致 (-want +got):\n%s", diff)
	}
}

func TestParse_DefaultDownloadBase(t *testing.T) {
	p := &Provider{}
	got, err := p.Parse(readFixture(t, "listing.html"))
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if len(got) == 0 {
		t.Fatalf("期望至少一条候选记录")
	}
	if got[0].DownloadLink != DefaultDownloadBase+"9001" {
		t.Fatalf("download link=%q", got[0].DownloadLink)
	}
}

func TestParse_EmptyResults(t *testing.T) {
	cases := []struct {
		name string
		html []byte
	}{
		{name: "schema.org 剧集标记", html: readFixture(t, "series_schema.html")},
		{name: "标题含 Season", html: readFixture(t, "series_header.html")},
		{name: "没有结果表", html: readFixture(t, "no_results.html")},
		{name: "空页面", html: nil},
	}
	p := &Provider{}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Parse(tc.html)
			if err != nil {
				t.Fatalf("不期望错误：%v", err)
			}
			if len(got) != 0 {
				t.Fatalf("期望空结果，实际 %d 条：%+v", len(got), got)
			}
		})
	}
}

func TestParse_IsPure(t *testing.T) {
	p := &Provider{}
	html := readFixture(t, "listing.html")
	a, err := p.Parse(html)
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	b, err := p.Parse(html)
	if err != nil {
		t.Fatalf("Parse 失败：%v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("相同输入得到不同输出：\n%s", diff)
	}
}

func TestParse_EpisodeHeaderVariants(t *testing.T) {
	for _, h := range []string{"<h1>Episode 4</h1>", "<h2>Some TV Series</h2>"} {
		html := []byte("<html><body>" + h + `<table id="search_results"><tr id="name5"><td id="main5">` +
			`<a class="bnone" href="/en/subtitles/5/x">X (2020)</a></td></tr></table></body></html>`)
		got, err := (&Provider{}).Parse(html)
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		if len(got) != 0 {
			t.Fatalf("%s：期望空结果，实际 %+v", h, got)
		}
	}
}

func TestParse_EmptySpanTitleFallsBack(t *testing.T) {
	html := []byte(`<html><body><table id="search_results"><tr id="name6"><td id="main6">` +
		`<a class="bnone" href="/en/subtitles/6/x">Film (2020)</a><br/><span title="">x</span>` +
		`</td></tr></table></body></html>`)
	got, err := (&Provider{}).Parse(html)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("期望 1 条，实际 %d", len(got))
	}
	// span title 为空：回退到第二段文本 "x"。
	if got[0].Filename != "x" {
		t.Fatalf("filename=%q，期望 x", got[0].Filename)
	}
}

func TestParse_SearchResultsNoiseFallsBackToTitle(t *testing.T) {
	html := []byte(`<html><body><table id="search_results"><tr id="name7"><td id="main7">` +
		`<a class="bnone" href="/en/subtitles/7/x">Film (2021)</a><br/>more search results` +
		`</td></tr></table></body></html>`)
	got, err := (&Provider{}).Parse(html)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 1 || got[0].Filename != "Film (2021)" {
		t.Fatalf("期望回退到标题，实际 %+v", got)
	}
}
