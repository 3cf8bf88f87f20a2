package opensubtitles

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/kompoti121/kompoti/internal/domain"
	"github.com/kompoti121/kompoti/internal/normalize"
)

var imdbHrefRE = regexp.MustCompile(`tt(\d+)`)

// 这些文本出现在主单元格第二段时是站点的按钮/提示，而不是文件名。
var filenameNoise = map[string]bool{
	"Watch online":                true,
	"Download Subtitles Searcher": true,
}

// Parse 把列表页 HTML 解析为候选字幕记录（按页面顺序）。
//
// 规则：
// - 页面被识别为剧集页：返回空
// - 缺少结果表：返回空（不是错误）
// - 行级：没有字幕详情链接或疑似剧集行（"[S" + "E"）直接跳过
func (p *Provider) Parse(raw []byte) ([]domain.Candidate, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if bytes.Contains(raw, []byte("schema.org/TVSeries")) {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	series := false
	doc.Find("h1, h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := s.Text()
		if strings.Contains(t, "Season") || strings.Contains(t, "Episode") || strings.Contains(t, "TV Series") {
			series = true
			return false
		}
		return true
	})
	if series {
		return nil, nil
	}

	table := doc.Find("table#search_results").First()
	if table.Length() == 0 {
		return nil, nil
	}

	base := p.DownloadBase
	if strings.TrimSpace(base) == "" {
		base = DefaultDownloadBase
	}

	out := make([]domain.Candidate, 0, 40)
	table.Find("tr[id^='name']").Each(func(_ int, row *goquery.Selection) {
		c, ok := parseRow(row)
		if !ok {
			return
		}
		c.DownloadLink = base + strconv.Itoa(c.SubtitleID)
		out = append(out, c)
	})
	return out, nil
}

func parseRow(row *goquery.Selection) (domain.Candidate, bool) {
	id, _ := row.Attr("id")
	subID, err := strconv.Atoi(strings.TrimPrefix(id, "name"))
	if err != nil {
		subID = 0
	}

	imdbID := ""
	row.Find("a[href*='imdb.com/title/tt']").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := imdbHrefRE.FindStringSubmatch(href); m != nil {
			imdbID = "tt" + m[1]
			return false
		}
		return true
	})

	link := row.Find("a.bnone, a[href*='/subtitles/']").First()
	if link.Length() == 0 {
		return domain.Candidate{}, false
	}
	href, _ := link.Attr("href")
	if !strings.Contains(href, "/subtitles/") {
		return domain.Candidate{}, false
	}
	title := normalize.CleanText(link.Text())

	rowText := row.Text()
	if strings.Contains(rowText, "[S") && strings.Contains(rowText, "E") {
		return domain.Candidate{}, false
	}

	filename := ""
	if td := row.Find("td[id^='main']").First(); td.Length() > 0 {
		if v, ok := td.Find("span[title]").First().Attr("title"); ok {
			filename = v
		}
		if filename == "" {
			texts := strippedStrings(td)
			if len(texts) > 1 {
				fb := texts[1]
				if !filenameNoise[fb] && !strings.Contains(fb, "search results") {
					filename = fb
				}
			}
		}
	}
	if filename == "" {
		filename = title
	}

	return domain.Candidate{
		SubtitleID: subID,
		MovieTitle: title,
		Filename:   filename,
		IMDbID:     imdbID,
	}, true
}

// strippedStrings 按文档顺序返回 s 下所有非空文本节点（已去首尾空白）。
func strippedStrings(s *goquery.Selection) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out = append(out, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return out
}
