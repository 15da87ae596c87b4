package cache

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound 表示磁盘上不存在对应文件（或目标是目录）。
var ErrNotFound = errors.New("content not found")

// ErrOutsideBase 表示请求路径逃出了基础目录。
var ErrOutsideBase = errors.New("path escapes base directory")

// Disk 在 basePath 下按 URL 风格的相对路径读取文件，静态目录与错误页目录各用一份。
type Disk struct {
	fs       afero.Fs
	basePath string
}

// NewDisk 构造只读的磁盘读取器；fs 为空时使用 afero.NewOsFs()。
func NewDisk(fsys afero.Fs, basePath string) *Disk {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Disk{fs: fsys, basePath: filepath.Clean(basePath)}
}

// BasePath 返回读取器的根目录。
func (d *Disk) BasePath() string {
	return d.basePath
}

// Read 读取 rel 对应文件的全部内容。请求不会因客户端断开而中断，ctx 只在开始前检查。
func (d *Disk) Read(ctx context.Context, rel string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := d.path(rel)
	if err != nil {
		return nil, err
	}

	info, err := d.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	content, err := afero.ReadFile(d.fs, filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return content, nil
}

func (d *Disk) path(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" {
		return "", ErrNotFound
	}

	filePath := filepath.Join(d.basePath, filepath.FromSlash(clean))
	prefix := d.basePath
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(filePath, prefix) {
		return "", ErrOutsideBase
	}
	return filePath, nil
}
