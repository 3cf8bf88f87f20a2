package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
	Snippet    string // 响应体开头（仅用于日志排查）
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// Is 让 404 可以被 errors.Is(err, ErrNotFound) 识别。
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrNotFound && e != nil && e.StatusCode == http.StatusNotFound
}

// BlockedError 表示请求被站点引导到了“验证/拦截”页面（例如 Cloudflare 质询）。
// 产品约束：不尝试绕过，直接视为本周期抓取失败，下个周期再试。
type BlockedError struct {
	URL    string
	Reason string // 例如 "cf-challenge"
}

func (e *BlockedError) Error() string {
	if e == nil {
		return "blocked"
	}
	if strings.TrimSpace(e.Reason) == "" {
		return "blocked"
	}
	return "blocked: " + strings.TrimSpace(e.Reason)
}

// IsNotFound 判断 err 是否表示“上游没有这条数据”。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
