// Package fsx 提供目录内原子写入与重命名的统一入口。
package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/renameio/v2"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV / 替换失败等错误。
var (
	renameFunc  = os.Rename
	replaceFunc = func(pf *renameio.PendingFile) error { return pf.CloseAtomicallyReplace() }
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 不做 copy+delete 兜底：目录配置错误应该让用户看到。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice 判断 err 是否为跨盘（EXDEV）错误。
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// os.LinkError 实现了 Unwrap，errors.Is 能直接穿透到 syscall.EXDEV。
func isEXDEV(err error) bool { return errors.Is(err, syscall.EXDEV) }

// WriteFileAtomicReplace 在 dir 下原子写入 name，目标已存在则覆盖。
//
// - 临时文件与目标文件同目录（renameio），保证 rename 的原子性
// - 临时文件 fsync 后再 rename；读者只会看到旧文件或新文件
// - 任何失败都会清理临时文件，不会留下半截的目标文件
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(filepath.Clean(dir), name)
	if fi, err := os.Lstat(dst); err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	pf, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644), renameio.WithTempDir(dir))
	if err != nil {
		return err
	}
	defer func() { _ = pf.Cleanup() }()

	if _, err := pf.Write(data); err != nil {
		return err
	}
	return replaceFunc(pf)
}
