// Package provider 收拢各上游站点的共同约定与错误类型。
//
// 约束：
// - 具体站点（opensubtitles/yts/imdbapi/gemini）各自一个子包，站点变化限制在子包内部
// - 子包不做缓存、不做限速（限速由 enrich 编排层统一控制）
// - 解析函数必须是纯函数：相同输入 => 相同输出
package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound 表示上游明确没有这条数据（不是网络故障）。
var ErrNotFound = errors.New("not found")

// Error 是 provider 阶段的可追溯错误。
// 上层可以据此把失败归类为 fetch_failed / not_found / enrich_failed。
type Error struct {
	Provider string // provider name（小写）
	Stage    string // 例如 "lookup" / "details" / "plot" / "translate" / "fetch"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap 把 err 包成 *Error；err 为 nil 时返回 nil。
func Wrap(providerName, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Provider: providerName, Stage: stage, Err: err}
}

// CheckResponse 把 resty 的非 2xx 响应映射为 *HTTPStatusError（404 额外包含 ErrNotFound）。
func CheckResponse(resp *resty.Response) error {
	if resp == nil {
		return errors.New("nil response")
	}
	if !resp.IsError() && resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
		return nil
	}
	u := ""
	if resp.Request != nil {
		u = resp.Request.URL
	}
	return &HTTPStatusError{
		URL:        u,
		StatusCode: resp.StatusCode(),
		Location:   strings.TrimSpace(resp.Header().Get("Location")),
		Snippet:    snippet(resp.Body(), 200),
	}
}

func snippet(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = s[:n]
	}
	return s
}
