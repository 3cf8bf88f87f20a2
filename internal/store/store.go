// Package store 负责目录与 feed 的落盘：读取（兼容旧格式）、原子写入、单写者锁。
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/kompoti121/kompoti/internal/domain"
	"github.com/kompoti121/kompoti/internal/feed"
	"github.com/kompoti121/kompoti/internal/infra/fsx"
)

const (
	DefaultCatalogName = "fulldatabase.json"
	DefaultFeedName    = "latest_movies.json"

	lockName = ".kompoti.lock"
)

var (
	// ErrCorrupt 表示目录文件存在但无法解析。
	ErrCorrupt = errors.New("store: catalog corrupt")
	// ErrLocked 表示另一个进程正在写同一份目录。
	ErrLocked = errors.New("store: catalog locked by another process")
)

type Options struct {
	Dir         string
	CatalogName string
	FeedName    string
	// ResetOnCorrupt=true 时，损坏的目录文件被移到一旁并从空目录开始。
	ResetOnCorrupt bool
	Now            func() time.Time
	Log            zerolog.Logger
}

// Store 管理 <Dir> 下的目录文件与 feed 文件。
//
// 约束：
// - 写入一律走 fsx 原子替换：读者只会看到旧文件或新文件
// - 同一目录同一时间只允许一个写者（flock）
type Store struct {
	dir            string
	catalogName    string
	feedName       string
	resetOnCorrupt bool
	now            func() time.Time
	log            zerolog.Logger

	lock *flock.Flock
}

// Open 校验参数并创建输出目录。
func Open(opts Options) (*Store, error) {
	dir := filepath.Clean(strings.TrimSpace(opts.Dir))
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败：%w", err)
	}
	s := &Store{
		dir:            dir,
		catalogName:    cleanName(opts.CatalogName, DefaultCatalogName),
		feedName:       cleanName(opts.FeedName, DefaultFeedName),
		resetOnCorrupt: opts.ResetOnCorrupt,
		now:            opts.Now,
		log:            opts.Log,
		lock:           flock.New(filepath.Join(dir, lockName)),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.catalogName == s.feedName {
		return nil, fmt.Errorf("目录文件与 feed 文件不能同名：%q", s.catalogName)
	}
	return s, nil
}

func cleanName(name, def string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return def
	}
	return filepath.Base(name)
}

func (s *Store) CatalogPath() string { return filepath.Join(s.dir, s.catalogName) }
func (s *Store) FeedPath() string { return filepath.Join(s.dir, s.feedName) }

// Lock 非阻塞地获取单写者锁；已被占用时返回 ErrLocked。
func (s *Store) Lock() error {
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("获取目录锁失败：%w", err)
	}
	if !ok {
		return fmt.Errorf("%w（%s）", ErrLocked, s.lock.Path())
	}
	return nil
}

// Unlock 释放单写者锁（未持有时为 no-op）。
func (s *Store) Unlock() error {
	return s.lock.Unlock()
}

// catalogFile 是目录文件的落盘结构。
type catalogFile struct {
	YTSURL   string                          `json:"yts_url"`
	Database map[domain.IMDbID]*domain.Entry `json:"database"`
}

// Load 读取目录。
//
// - 文件不存在：返回空目录
// - 顶层对象含 database 键：新格式 {yts_url, database}
// - 否则：旧格式，整个对象就是 ID -> Entry 映射
// - 无法解析：ErrCorrupt；若开启 ResetOnCorrupt，则把坏文件移到 <name>.corrupt-<unix> 并返回空目录
func (s *Store) Load() (*domain.Catalog, error) {
	path := s.CatalogPath()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewCatalog(""), nil
		}
		return nil, err
	}

	cat, err := DecodeCatalog(b)
	if err == nil {
		return cat, nil
	}
	if !s.resetOnCorrupt {
		return nil, fmt.Errorf("%w：%s：%v", ErrCorrupt, path, err)
	}

	aside := fmt.Sprintf("%s.corrupt-%d", path, s.now().Unix())
	if rerr := fsx.Rename(path, aside); rerr != nil {
		return nil, fmt.Errorf("移走损坏的目录文件失败：%w", rerr)
	}
	s.log.Warn().Err(err).Str("moved_to", aside).Msg("目录文件损坏，已移到一旁并从空目录开始")
	return domain.NewCatalog(""), nil
}

// DecodeCatalog 解析目录文件内容（新旧两种格式）。
func DecodeCatalog(b []byte) (*domain.Catalog, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errors.New("文件为空")
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return nil, err
	}
	if top == nil {
		return nil, errors.New("顶层不是对象")
	}

	var (
		baseURL string
		entries map[domain.IMDbID]*domain.Entry
	)
	if _, ok := top["database"]; ok {
		var f catalogFile
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, err
		}
		baseURL, entries = f.YTSURL, f.Database
	} else {
		if err := json.Unmarshal(b, &entries); err != nil {
			return nil, err
		}
	}

	cat := domain.NewCatalog(baseURL)
	for id, e := range entries {
		if e == nil {
			continue
		}
		if e.SubtitleList == nil {
			e.SubtitleList = []domain.SubtitleItem{}
		}
		cat.Entries[id] = e
	}
	return cat, nil
}

// SaveCatalog 以新格式原子写入整个目录。
func (s *Store) SaveCatalog(cat *domain.Catalog) error {
	if cat == nil {
		return errors.New("catalog 不能为空")
	}
	f := catalogFile{YTSURL: cat.BaseURL, Database: cat.Entries}
	if f.Database == nil {
		f.Database = map[domain.IMDbID]*domain.Entry{}
	}
	b, err := marshal(f)
	if err != nil {
		return err
	}
	if err := fsx.WriteFileAtomicReplace(s.dir, s.catalogName, b); err != nil {
		return fmt.Errorf("写入目录文件失败：%w", err)
	}
	return nil
}

// SaveFeed 原子写入 feed。
func (s *Store) SaveFeed(f feed.Feed) error {
	if f.Movies == nil {
		f.Movies = []domain.Entry{}
	}
	b, err := marshal(f)
	if err != nil {
		return err
	}
	if err := fsx.WriteFileAtomicReplace(s.dir, s.feedName, b); err != nil {
		return fmt.Errorf("写入 feed 文件失败：%w", err)
	}
	return nil
}

// marshal 输出 2 空格缩进、不转义 HTML 的 JSON（map 键按字典序，输出稳定）。
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
