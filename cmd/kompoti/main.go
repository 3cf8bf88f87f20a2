package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kompoti121/kompoti/internal/app/merge"
	"github.com/kompoti121/kompoti/internal/app/run"
	"github.com/kompoti121/kompoti/internal/config"
	"github.com/kompoti121/kompoti/internal/enrich"
	"github.com/kompoti121/kompoti/internal/infra/httpx"
	"github.com/kompoti121/kompoti/internal/infra/logx"
	"github.com/kompoti121/kompoti/internal/provider/gemini"
	"github.com/kompoti121/kompoti/internal/provider/imdbapi"
	"github.com/kompoti121/kompoti/internal/provider/opensubtitles"
	"github.com/kompoti121/kompoti/internal/provider/yts"
	"github.com/kompoti121/kompoti/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// usageError 标记命令行参数错误（退出码 2）。
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "kompoti: %v\n", err)
		return exitCode(err)
	}
	return 0
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "kompoti",
		Short: "增量同步阿尔巴尼亚语电影字幕目录",
		Long: `kompoti 周期性抓取字幕列表页，为新电影补全 YTS 元数据与剧情简介，
并把结果写入目录文件与最近更新 feed。

配置来源（高 -> 低）：KOMPOTI_* 环境变量 > kompoti.yaml > 内置默认值。
当前目录下的 .env 会在读取配置前加载；GEMINI_API_KEY 为空时不翻译。`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return usageError{err: err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), once, stderr)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "只执行一个周期后退出（默认常驻，按 daemon.interval 循环）")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	return cmd
}

func exitCode(err error) int {
	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ue):
		return 2
	case config.Code(err) == config.ErrCodeInvalid:
		return 2
	default:
		return 1
	}
}

// loadDotEnv 加载 .env；文件不存在不是错误，且不覆盖已有环境变量。
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("读取 %s 失败：%w", path, err)
	}
	return nil
}

func runSync(ctx context.Context, once bool, stderr io.Writer) error {
	if err := loadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(config.DefaultSearchPaths()...)
	if err != nil {
		return err
	}
	if err := logx.Configure(logx.Config{Level: cfg.Log.Level, Output: stderr}); err != nil {
		return err
	}
	log := logx.WithComponent("kompoti")
	if cfg.File != "" {
		log.Info().Str("config", cfg.File).Msg("已读取配置文件")
	}

	st, err := store.Open(store.Options{
		Dir:            cfg.Output.Dir,
		CatalogName:    cfg.Output.Catalog,
		FeedName:       cfg.Output.Feed,
		ResetOnCorrupt: cfg.Output.ResetOnCorrupt,
		Log:            logx.WithComponent("store"),
	})
	if err != nil {
		return err
	}
	if err := st.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := st.Unlock(); err != nil {
			log.Warn().Err(err).Msg("释放目录锁失败")
		}
	}()

	cat, err := st.Load()
	if err != nil {
		return err
	}

	r, err := newRunner(ctx, cfg, st, log)
	if err != nil {
		return err
	}
	log.Info().
		Str("base_url", r.BaseURL).
		Str("catalog", st.CatalogPath()).
		Int("entries", cat.Len()).
		Bool("once", once).
		Bool("translate", cfg.Translate.Enabled()).
		Msg("开始同步")

	err = r.Loop(ctx, cat, once)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("收到退出信号，已停止")
		return nil
	}
	return err
}

// newRunner 按配置组装抓取、扩充、合并与落盘各环节。
func newRunner(ctx context.Context, cfg config.Config, st *store.Store, log zerolog.Logger) (*run.Runner, error) {
	client, err := httpx.NewRestyClient(httpx.Options{ProxyURL: cfg.HTTP.Proxy, Timeout: cfg.HTTP.Timeout})
	if err != nil {
		return nil, &config.Error{Code: config.ErrCodeInvalid, Path: "http.proxy", Err: err}
	}

	baseURL := cfg.YTS.BaseURL
	if baseURL == "" {
		baseURL = yts.DetectDomain(ctx, client, cfg.YTS.StatusURL, cfg.YTS.FallbackURL, logx.WithComponent("yts"))
	}

	orch := &enrich.Orchestrator{
		Movies:      &yts.Client{BaseURL: baseURL, HTTP: client},
		Plots:       &imdbapi.Client{BaseURL: cfg.IMDb.BaseURL, HTTP: client},
		BaseURL:     baseURL,
		LookupDelay: cfg.Enrich.LookupDelay,
		PlotDelay:   cfg.Enrich.PlotDelay,
		Log:         logx.WithComponent("enrich"),
	}
	if cfg.Translate.Enabled() {
		tr, err := newTranslator(cfg)
		if err != nil {
			return nil, err
		}
		orch.Translator = tr
	}

	return &run.Runner{
		Listing: &opensubtitles.Provider{
			URL:          cfg.Listing.URL,
			DownloadBase: cfg.Listing.DownloadBase,
			Client:       client,
		},
		Engine: &merge.Engine{
			Enricher: orch,
			Featured: merge.FeaturedRule{Years: cfg.Featured.Years, MinVotes: cfg.Featured.MinVotes},
			Log:      logx.WithComponent("merge"),
		},
		Store:    st,
		BaseURL:  baseURL,
		FeedSize: cfg.Output.FeedSize,
		Interval: cfg.Daemon.Interval,
		Observer: newLogObserver(log),
		Log:      log,
	}, nil
}

// newTranslator 使用独立的 HTTP client：翻译的超时比普通抓取长。
func newTranslator(cfg config.Config) (*gemini.Client, error) {
	hc, err := httpx.NewClient(httpx.Options{ProxyURL: cfg.HTTP.Proxy, Timeout: cfg.Translate.Timeout})
	if err != nil {
		return nil, &config.Error{Code: config.ErrCodeInvalid, Path: "http.proxy", Err: err}
	}
	return gemini.New(gemini.Options{
		BaseURL:  cfg.Translate.BaseURL,
		APIKey:   cfg.Translate.APIKey,
		Model:    cfg.Translate.Model,
		Language: cfg.Translate.Language,
		HTTP:     resty.NewWithClient(hc),
	})
}
