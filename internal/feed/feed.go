// Package feed 从目录派生“最近更新”列表。
//
// feed 只是目录的投影：不持有独立状态，任何时候都可以从目录重建。
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/kompoti121/kompoti/internal/domain"
)

// DefaultSize 是 feed 的默认条数上限。
const DefaultSize = 50

// Feed 是 latest_movies.json 的落盘结构。
type Feed struct {
	YTSURL string         `json:"yts_url"`
	Movies []domain.Entry `json:"movies"`
}

// Recent 按首次发现时间倒序返回最多 n 条条目的拷贝（n<=0 使用默认值）。
//
// 同一时间戳的条目按 IMDb ID 升序排列，保证输出确定。
func Recent(cat *domain.Catalog, n int) []domain.Entry {
	if n <= 0 {
		n = DefaultSize
	}
	if cat == nil || cat.Len() == 0 {
		return []domain.Entry{}
	}

	ids := cat.IDs()
	sort.SliceStable(ids, func(i, j int) bool {
		return cat.Entries[ids[i]].FirstSeenAt.After(cat.Entries[ids[j]].FirstSeenAt.Time)
	})
	if len(ids) > n {
		ids = ids[:n]
	}

	out := make([]domain.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, cat.Entries[id].Clone())
	}
	return out
}

// Build 生成完整 feed。
func Build(cat *domain.Catalog, n int) Feed {
	f := Feed{Movies: Recent(cat, n)}
	if cat != nil {
		f.YTSURL = cat.BaseURL
	}
	return f
}

// Decode 解析 feed 文件：既接受 {yts_url, movies}，也接受旧版的纯数组。
func Decode(b []byte) (Feed, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return Feed{}, errors.New("feed 为空")
	}
	switch b[0] {
	case '[':
		var movies []domain.Entry
		if err := json.Unmarshal(b, &movies); err != nil {
			return Feed{}, fmt.Errorf("解析 feed 数组失败：%w", err)
		}
		return Feed{Movies: movies}, nil
	case '{':
		var f Feed
		if err := json.Unmarshal(b, &f); err != nil {
			return Feed{}, fmt.Errorf("解析 feed 对象失败：%w", err)
		}
		if f.Movies == nil {
			f.Movies = []domain.Entry{}
		}
		return f, nil
	default:
		return Feed{}, fmt.Errorf("无法识别的 feed 格式（首字符 %q）", b[0])
	}
}
