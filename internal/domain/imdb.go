package domain

import (
	"regexp"
	"strings"
)

// IMDbID 是目录的唯一主键（形如 tt1234567）。
//
// 约束：要么得到合法 ID，要么视为缺失；缺失的行无法入库。
type IMDbID = string

var imdbIDRE = regexp.MustCompile(`^tt[0-9]+$`)

// ParseIMDbID 校验并规范化 IMDb ID（去空白、统一小写前缀）。
func ParseIMDbID(s string) (IMDbID, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !imdbIDRE.MatchString(s) {
		return "", false
	}
	return s, true
}
