package domain

import (
	"sort"
)

// SubtitleItem 是目录条目内的一条字幕（id 在所属条目内唯一）。
type SubtitleItem struct {
	ID           int    `json:"id"`
	Filename     string `json:"filename"`
	DownloadLink string `json:"download_link"`
}

// Entry 是某部电影在目录中的持久化记录。
//
// 不变量：
// - SubtitleList 只增不减，顺序即发现顺序
// - IsFeatured 只在创建时计算一次，之后不再重算
type Entry struct {
	Title        string         `json:"title"`
	Year         int            `json:"year,omitempty"`
	SubtitleList []SubtitleItem `json:"subtitle_list"`
	// 磁盘上沿用旧字段名 date_uploaded（语义为首次发现时间）。
	FirstSeenAt Timestamp `json:"date_uploaded"`
	IsFeatured  bool      `json:"is_featured,omitempty"`
	Movie       *Movie    `json:"yts_data,omitempty"`
}

// HasSubtitle 判断 id 是否已在字幕列表中。
func (e *Entry) HasSubtitle(id int) bool {
	for _, s := range e.SubtitleList {
		if s.ID == id {
			return true
		}
	}
	return false
}

// AddSubtitle 追加字幕；id 已存在时不做任何修改并返回 false。
func (e *Entry) AddSubtitle(it SubtitleItem) bool {
	if e.HasSubtitle(it.ID) {
		return false
	}
	e.SubtitleList = append(e.SubtitleList, it)
	return true
}

// Clone 返回深拷贝（feed 等只读投影不得通过共享切片改到目录本体）。
func (e Entry) Clone() Entry {
	out := e
	out.SubtitleList = append([]SubtitleItem(nil), e.SubtitleList...)
	if e.Movie != nil {
		m := e.Movie.Clone()
		out.Movie = &m
	}
	return out
}

// Catalog 是进程内唯一可写的数据源：IMDb ID -> Entry，外加最近一次相对化所用的源站 base URL。
type Catalog struct {
	BaseURL string
	Entries map[IMDbID]*Entry
}

// NewCatalog 返回空目录。
func NewCatalog(baseURL string) *Catalog {
	return &Catalog{
		BaseURL: baseURL,
		Entries: make(map[IMDbID]*Entry),
	}
}

func (c *Catalog) Len() int { return len(c.Entries) }

// Get 按 ID 查找条目。
func (c *Catalog) Get(id IMDbID) (*Entry, bool) {
	if c == nil || c.Entries == nil {
		return nil, false
	}
	e, ok := c.Entries[id]
	return e, ok
}

// Insert 新增条目；ID 已存在时拒绝覆盖（主键永不复用）。
func (c *Catalog) Insert(id IMDbID, e *Entry) bool {
	if c.Entries == nil {
		c.Entries = make(map[IMDbID]*Entry)
	}
	if _, ok := c.Entries[id]; ok {
		return false
	}
	c.Entries[id] = e
	return true
}

// IDs 返回按字典序排序的全部 ID（map 迭代顺序不稳定，凡需确定性的地方都走这里）。
func (c *Catalog) IDs() []IMDbID {
	out := make([]IMDbID, 0, len(c.Entries))
	for id := range c.Entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
