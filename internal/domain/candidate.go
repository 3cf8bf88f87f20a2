package domain

// Candidate 是从列表页某一行解析出的字幕记录（尚未与目录对账）。
// 生命周期仅限一次 parse+merge 周期。
type Candidate struct {
	SubtitleID   int    // 站点分配的数字 ID；无法解析时为 0
	MovieTitle   string // 已清洗的电影标题
	Filename     string // 尽力而为的展示文件名
	IMDbID       IMDbID // 为空表示该行没有交叉引用 ID
	DownloadLink string // 由 SubtitleID 确定性推导
}

// Item 把候选记录收敛为可持久化的字幕条目。
func (c Candidate) Item() SubtitleItem {
	return SubtitleItem{
		ID:           c.SubtitleID,
		Filename:     c.Filename,
		DownloadLink: c.DownloadLink,
	}
}
