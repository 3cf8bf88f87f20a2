// Package logx 统一配置 zerolog：TTY 下输出人类可读格式，否则输出 JSON 行。
package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config 描述全局 logger 的配置。
type Config struct {
	Level  string    // "debug" / "info" / "warn" / "error"；空串=info
	Output io.Writer // 默认 os.Stderr
	// Console 为 nil 时自动判断：Output 是终端则用 ConsoleWriter。
	Console *bool
}

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// New 按 cfg 构造 logger；不修改全局状态。
func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if s := strings.TrimSpace(cfg.Level); s != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("非法日志级别：%q", cfg.Level)
		}
		level = parsed
	}

	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	console := IsTerminal(w)
	if cfg.Console != nil {
		console = *cfg.Console
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// Configure 替换全局 base logger。进程启动时调用一次。
func Configure(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	zerolog.TimeFieldFormat = time.RFC3339
	mu.Lock()
	base = l
	mu.Unlock()
	return nil
}

// Base 返回当前全局 logger。
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent 返回带 component 字段的子 logger。
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}

// IsTerminal 判断 w 是否为交互终端。
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type ctxKey struct{}

// ContextWithCycleID 把周期 ID 放进 ctx，供下游日志关联。
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// CycleIDFromContext 取出周期 ID；不存在时返回空串。
func CycleIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// FromContext 返回附带 cycle_id（若有）的子 logger。
func FromContext(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	if id := CycleIDFromContext(ctx); id != "" {
		return l.With().Str("cycle_id", id).Logger()
	}
	return l
}
