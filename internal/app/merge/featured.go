package merge

import "time"

// DefaultMinVotes 是精选所需票数的下限（严格大于）。
const DefaultMinVotes = 7500

// FeaturedRule 决定新条目是否标记为精选。只在创建时计算一次。
type FeaturedRule struct {
	// Years 为空时取“去年 + 今年”（相对于注入的时钟）。
	Years    []int
	MinVotes int
}

// DefaultFeaturedRule 返回默认规则：相对年份 + 票数 > 7500。
func DefaultFeaturedRule() FeaturedRule {
	return FeaturedRule{MinVotes: DefaultMinVotes}
}

// EffectiveYears 返回在 now 时刻生效的年份集合。
func (r FeaturedRule) EffectiveYears(now time.Time) []int {
	if len(r.Years) > 0 {
		return append([]int(nil), r.Years...)
	}
	y := now.Year()
	return []int{y - 1, y}
}

// Match 判断 year/votes 是否满足精选条件。
func (r FeaturedRule) Match(year, votes int, now time.Time) bool {
	if votes <= r.MinVotes {
		return false
	}
	for _, y := range r.EffectiveYears(now) {
		if y == year {
			return true
		}
	}
	return false
}
