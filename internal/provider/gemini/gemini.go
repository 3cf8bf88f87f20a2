// Package gemini 用 Gemini generateContent 接口翻译剧情简介。
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	providerx "github.com/kompoti121/kompoti/internal/provider"
)

const (
	name = "gemini"

	DefaultBaseURL  = "https://generativelanguage.googleapis.com"
	DefaultModel    = "gemini-2.0-flash"
	DefaultLanguage = "sq"
)

// ErrEmptyResult 表示接口成功返回但没有可用译文。
var ErrEmptyResult = errors.New("empty translation")

type Options struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string // BCP 47 标签，例如 "sq"
	HTTP     *resty.Client
}

// Client 是翻译器；APIKey 为空时不应构造（由上层决定是否启用翻译）。
type Client struct {
	baseURL  string
	apiKey   string
	model    string
	langName string
	http     *resty.Client
}

// New 校验参数并解析目标语言的英文名称（写进提示词）。
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key 不能为空")
	}
	if opts.HTTP == nil {
		return nil, errors.New("http client 不能为空")
	}
	langName, err := LanguageName(opts.Language)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:   strings.TrimSpace(opts.APIKey),
		model:    strings.TrimSpace(opts.Model),
		langName: langName,
		http:     opts.HTTP,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	return c, nil
}

// LanguageName 把 BCP 47 标签转成英文语言名（"sq" -> "Albanian"）。
func LanguageName(tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = DefaultLanguage
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("非法语言标签 %q：%w", tag, err)
	}
	n := display.English.Tags().Name(t)
	if n == "" {
		return "", fmt.Errorf("未知语言标签 %q", tag)
	}
	return n, nil
}

func (*Client) Name() string { return name }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Prompt 返回发送给模型的完整提示词。
func (c *Client) Prompt(text string) string {
	return "Translate the following movie synopsis into " + c.langName + ". Return only the translated text.\n\n" + text
}

// Translate 返回去除首尾空白的译文；空输入或空结果都返回错误，由调用方回退原文。
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", providerx.Wrap(name, "translate", errors.New("待翻译文本为空"))
	}

	body := generateRequest{Contents: []content{{Parts: []part{{Text: c.Prompt(text)}}}}}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", c.apiKey).
		SetBody(body).
		Post(c.baseURL + "/v1beta/models/" + c.model + ":generateContent")
	if err != nil {
		return "", providerx.Wrap(name, "translate", redact(err, c.apiKey))
	}
	if err := providerx.CheckResponse(resp); err != nil {
		return "", providerx.Wrap(name, "translate", err)
	}

	var gr generateResponse
	if err := json.Unmarshal(resp.Body(), &gr); err != nil {
		return "", providerx.Wrap(name, "translate", fmt.Errorf("解析响应失败：%w", err))
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", providerx.Wrap(name, "translate", ErrEmptyResult)
	}
	out := strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
	if out == "" {
		return "", providerx.Wrap(name, "translate", ErrEmptyResult)
	}
	return out, nil
}

// 传输层错误会带上完整 URL（含 key），日志里不能出现凭据。
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
