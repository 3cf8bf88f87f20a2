// Package config 读取 kompoti.yaml + 环境变量，产出校验过的最终配置。
//
// 优先级（高 -> 低）：环境变量 KOMPOTI_<SECTION>_<KEY> > 配置文件 > 内置默认值。
// 翻译凭据额外兼容 GEMINI_API_KEY。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	FileName  = "kompoti"
	EnvPrefix = "KOMPOTI"
)

type Config struct {
	Listing   ListingConfig   `mapstructure:"listing"`
	YTS       YTSConfig       `mapstructure:"yts"`
	IMDb      IMDbConfig      `mapstructure:"imdb"`
	Translate TranslateConfig `mapstructure:"translate"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Featured  FeaturedConfig  `mapstructure:"featured"`
	Output    OutputConfig    `mapstructure:"output"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Log       LogConfig       `mapstructure:"log"`

	// File 是实际读取的配置文件路径；未找到配置文件时为空。
	File string `mapstructure:"-"`
}

type ListingConfig struct {
	URL          string `mapstructure:"url"`
	DownloadBase string `mapstructure:"download_base"`
}

type YTSConfig struct {
	// BaseURL 非空时固定使用，跳过状态页探测。
	BaseURL     string `mapstructure:"base_url"`
	StatusURL   string `mapstructure:"status_url"`
	FallbackURL string `mapstructure:"fallback_url"`
}

type IMDbConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type TranslateConfig struct {
	// APIKey 为空表示不翻译。
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled 报告是否配置了翻译凭据。
func (t TranslateConfig) Enabled() bool { return strings.TrimSpace(t.APIKey) != "" }

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Proxy   string        `mapstructure:"proxy"`
}

type EnrichConfig struct {
	LookupDelay time.Duration `mapstructure:"lookup_delay"`
	PlotDelay   time.Duration `mapstructure:"plot_delay"`
}

type FeaturedConfig struct {
	// Years 为空时使用“去年 + 今年”。
	Years    []int `mapstructure:"years"`
	MinVotes int   `mapstructure:"min_votes"`
}

type OutputConfig struct {
	Dir            string `mapstructure:"dir"`
	Catalog        string `mapstructure:"catalog"`
	Feed           string `mapstructure:"feed"`
	FeedSize       int    `mapstructure:"feed_size"`
	ResetOnCorrupt bool   `mapstructure:"reset_on_corrupt"`
}

type DaemonConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	where := e.Path
	if where == "" {
		where = "<defaults+env>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, where, e.Err)
	}
	return fmt.Sprintf("%s：配置 %q 无效", e.Code, where)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listing.url", "https://www.opensubtitles.org/en/search/sublanguageid-alb/searchonlymovies-on/offset-0/sort-5/asc-0")
	v.SetDefault("listing.download_base", "https://dl.opensubtitles.org/en/download/sub/")

	v.SetDefault("yts.base_url", "")
	v.SetDefault("yts.status_url", "https://yifystatus.com/")
	v.SetDefault("yts.fallback_url", "https://yts.lt")

	v.SetDefault("imdb.base_url", "https://api.imdbapi.dev")

	v.SetDefault("translate.api_key", "")
	v.SetDefault("translate.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("translate.model", "gemini-2.0-flash")
	v.SetDefault("translate.language", "sq")
	v.SetDefault("translate.timeout", "30s")

	v.SetDefault("http.timeout", "10s")
	v.SetDefault("http.proxy", "")

	v.SetDefault("enrich.lookup_delay", "1s")
	v.SetDefault("enrich.plot_delay", "500ms")

	v.SetDefault("featured.years", []int{})
	v.SetDefault("featured.min_votes", 7500)

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.catalog", "fulldatabase.json")
	v.SetDefault("output.feed", "latest_movies.json")
	v.SetDefault("output.feed_size", 50)
	v.SetDefault("output.reset_on_corrupt", false)

	v.SetDefault("daemon.interval", "60m")

	v.SetDefault("log.level", "info")
}

// DefaultSearchPaths 返回配置文件的查找目录：当前目录，然后 $HOME/.config/kompoti。
func DefaultSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "kompoti"))
	}
	return paths
}

// Load 在 searchPaths 中查找 kompoti.yaml（可选），叠加环境变量后校验。
// searchPaths 为空时使用 DefaultSearchPaths。
func Load(searchPaths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if len(searchPaths) == 0 {
		searchPaths = DefaultSearchPaths()
	}
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("translate.api_key", EnvPrefix+"_TRANSLATE_API_KEY", "GEMINI_API_KEY"); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Err: err}
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, &Error{Code: ErrCodeInvalid, Path: v.ConfigFileUsed(), Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: v.ConfigFileUsed(), Err: err}
	}
	cfg.File = v.ConfigFileUsed()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Path: cfg.File, Err: err}
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Listing.URL = strings.TrimSpace(c.Listing.URL)
	c.Listing.DownloadBase = strings.TrimSpace(c.Listing.DownloadBase)
	c.YTS.BaseURL = strings.TrimRight(strings.TrimSpace(c.YTS.BaseURL), "/")
	c.YTS.StatusURL = strings.TrimSpace(c.YTS.StatusURL)
	c.YTS.FallbackURL = strings.TrimRight(strings.TrimSpace(c.YTS.FallbackURL), "/")
	c.IMDb.BaseURL = strings.TrimRight(strings.TrimSpace(c.IMDb.BaseURL), "/")
	c.Translate.APIKey = strings.TrimSpace(c.Translate.APIKey)
	c.Translate.BaseURL = strings.TrimRight(strings.TrimSpace(c.Translate.BaseURL), "/")
	c.Translate.Model = strings.TrimSpace(c.Translate.Model)
	c.Translate.Language = strings.TrimSpace(c.Translate.Language)
	c.HTTP.Proxy = strings.TrimSpace(c.HTTP.Proxy)
	c.Output.Dir = strings.TrimSpace(c.Output.Dir)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
}

// Validate 校验字段取值；返回第一个发现的问题。
func (c Config) Validate() error {
	urls := []struct {
		key      string
		val      string
		optional bool
	}{
		{key: "listing.url", val: c.Listing.URL},
		{key: "listing.download_base", val: c.Listing.DownloadBase},
		{key: "yts.base_url", val: c.YTS.BaseURL, optional: true},
		{key: "yts.status_url", val: c.YTS.StatusURL},
		{key: "yts.fallback_url", val: c.YTS.FallbackURL},
		{key: "imdb.base_url", val: c.IMDb.BaseURL},
		{key: "translate.base_url", val: c.Translate.BaseURL},
		{key: "http.proxy", val: c.HTTP.Proxy, optional: true},
	}
	for _, u := range urls {
		if u.val == "" && u.optional {
			continue
		}
		schemes := []string{"http", "https"}
		if u.key == "http.proxy" {
			schemes = append(schemes, "socks5")
		}
		if err := validateURL(u.val, schemes...); err != nil {
			return fmt.Errorf("%s：%w", u.key, err)
		}
	}

	if c.Translate.Model == "" {
		return errors.New("translate.model 不能为空")
	}
	if _, err := language.Parse(c.Translate.Language); err != nil {
		return fmt.Errorf("translate.language 不是合法的语言标签：%q", c.Translate.Language)
	}

	durations := []struct {
		key      string
		val      time.Duration
		positive bool
	}{
		{key: "translate.timeout", val: c.Translate.Timeout, positive: true},
		{key: "http.timeout", val: c.HTTP.Timeout, positive: true},
		{key: "enrich.lookup_delay", val: c.Enrich.LookupDelay},
		{key: "enrich.plot_delay", val: c.Enrich.PlotDelay},
		{key: "daemon.interval", val: c.Daemon.Interval, positive: true},
	}
	for _, d := range durations {
		if d.val < 0 || (d.positive && d.val == 0) {
			return fmt.Errorf("%s 取值非法：%v", d.key, d.val)
		}
	}

	if c.Featured.MinVotes < 0 {
		return fmt.Errorf("featured.min_votes 不能为负数：%d", c.Featured.MinVotes)
	}
	if c.Output.FeedSize <= 0 {
		return fmt.Errorf("output.feed_size 必须为正数：%d", c.Output.FeedSize)
	}
	if strings.TrimSpace(c.Output.Catalog) == "" || strings.TrimSpace(c.Output.Feed) == "" {
		return errors.New("output.catalog / output.feed 不能为空")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level 非法：%q", c.Log.Level)
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	ok := false
	for _, s := range schemes {
		if u.Scheme == s {
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("仅支持 %s：%q", strings.Join(schemes, "/"), raw)
	}
	if u.Host == "" {
		return fmt.Errorf("缺少 host：%q", raw)
	}
	return nil
}
