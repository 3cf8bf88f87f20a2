package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout 是目录文件中时间字段的历史格式（UTC，无时区后缀）。
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp 以 TimestampLayout 读写 JSON；读取时兼容 RFC3339。
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(TimestampLayout))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("时间字段必须是字符串：%w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := time.Parse(TimestampLayout, s); err == nil {
		t.Time = v.UTC()
		return nil
	}
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("无法解析时间 %q：%w", s, err)
	}
	t.Time = v.UTC()
	return nil
}
