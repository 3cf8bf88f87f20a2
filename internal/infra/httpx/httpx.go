package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetryMax = 2
	defaultBackoff  = 500 * time.Millisecond
)

// Transport 是所有上游共用的出站策略：浏览器 UA、代理下的短连接、有界重试。
//
// 重试只覆盖连接错误与 502/503/504；其他状态码原样返回，由 provider.CheckResponse 判定。
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int

	// Backoff 是第 n 次重试前等待 n*Backoff；0 表示不等待。
	Backoff time.Duration

	// DisableKeepAlives=true 时每个请求都带 Close=true，与 Base.DisableKeepAlives 配合使用。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对可重放的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) &&
		(req.Body == nil || req.Body == http.NoBody)
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		r := req.Clone(req.Context())
		if ua := r.Header.Get("User-Agent"); ua == "" || isLibraryUA(ua) {
			r.Header.Set("User-Agent", t.ua.random())
		}
		if t.DisableKeepAlives {
			r.Close = true
		}

		resp, err := t.Base.RoundTrip(r)
		switch {
		case err != nil:
			lastErr = err
		case attempt < max && retryableStatus(resp.StatusCode):
			// 网关类错误：丢弃本次响应后重试；最后一次原样交给调用方。
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		default:
			return resp, nil
		}

		if attempt >= max || req.Context().Err() != nil {
			return nil, lastErr
		}
		if err := t.wait(req.Context(), attempt); err != nil {
			return nil, lastErr
		}
	}
}

// wait 按线性退避等待；ctx 取消时立刻返回。
func (t *Transport) wait(ctx context.Context, attempt int) error {
	if t.Backoff <= 0 {
		return nil
	}
	timer := time.NewTimer(t.Backoff * time.Duration(attempt+1))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// resty/Go 默认 UA 会被部分站点直接拦截，统一替换成浏览器 UA。
func isLibraryUA(ua string) bool {
	return strings.HasPrefix(ua, "go-resty/") || strings.HasPrefix(ua, "Go-http-client/")
}

// Options 描述一个出站 client 的网络策略。
type Options struct {
	ProxyURL string
	// Timeout 为单次调用的总超时；<=0 时使用默认值。
	Timeout time.Duration
}

// NewClient 构造所有上游共用的 HTTP client。
//
// 规则：
// - ProxyURL 非空：必须走代理，且禁用 keep-alive（每请求新连接）
// - 内置 UA 池：每个请求随机 UA
// - 有界重试 + 总超时
func NewClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	disableKeepAlives := false

	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy url 缺少 scheme 或 host")
		}
		base.Proxy = http.ProxyURL(u)
		// proxy 模式强制每请求新连接（代理池轮换依赖该行为）。
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	tr := &Transport{
		Base:              base,
		ua:                globalUA,
		RetryMax:          defaultRetryMax,
		Backoff:           defaultBackoff,
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// NewRestyClient 在 NewClient 之上包一层 resty，供各 provider 复用。
func NewRestyClient(opts Options) (*resty.Client, error) {
	c, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	return resty.NewWithClient(c), nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
