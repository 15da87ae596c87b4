package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/routerway/routerway/internal/contenttype"
)

// errBudgetReached 用于提前结束预热遍历。
var errBudgetReached = errors.New("cache budget reached")

// Initialize 递归遍历根目录（跟随符号链接）预热缓存。单个文件失败只记录日志，
// 总量超过预算后停止遍历，之后的文件不再尝试。
func (c *FileCache) Initialize(ctx context.Context) error {
	if !c.enabled {
		c.logger.WithField("action", "cache_init").Info("文件缓存已禁用")
		return nil
	}

	info, err := c.fs.Stat(c.root)
	if err != nil {
		return fmt.Errorf("无法访问缓存根目录: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("缓存根目录不是目录: %s", c.root)
	}

	c.logger.WithFields(logrus.Fields{
		"action": "cache_init",
		"root":   c.root,
		"budget": c.maxSize,
	}).Info("开始初始化文件缓存")

	w := walker{cache: c, visited: []os.FileInfo{info}}
	err = w.walkDir(ctx, c.root)
	switch {
	case errors.Is(err, errBudgetReached):
		c.logger.WithField("action", "cache_init").Warn("缓存大小超过限制，停止加载更多文件")
	case err != nil:
		return err
	}

	stats := c.Stats()
	c.logger.WithFields(logrus.Fields{
		"action":  "cache_init",
		"loaded":  w.loaded,
		"entries": stats.Entries,
		"total":   stats.TotalBytes,
	}).Infof("文件缓存初始化完成: %d 个文件, 总大小: %s", w.loaded, humanize.IBytes(uint64(stats.TotalBytes)))
	return nil
}

type walker struct {
	cache   *FileCache
	visited []os.FileInfo
	loaded  int
}

func (w *walker) walkDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	children, err := afero.ReadDir(w.cache.fs, dir)
	if err != nil {
		w.cache.logger.WithError(err).WithFields(logrus.Fields{
			"action": "cache_init",
			"path":   dir,
		}).Warn("读取目录失败")
		return nil
	}

	for _, child := range children {
		name := child.Name()
		full := filepath.Join(dir, name)

		info := child
		if child.Mode()&os.ModeSymlink != 0 {
			resolved, err := w.cache.fs.Stat(full)
			if err != nil {
				w.cache.logger.WithError(err).WithFields(logrus.Fields{
					"action": "cache_init",
					"path":   full,
				}).Warn("解析符号链接失败")
				continue
			}
			info = resolved
		}

		switch {
		case info.IsDir():
			if w.seen(info) {
				continue
			}
			w.visited = append(w.visited, info)
			if err := w.walkDir(ctx, full); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			// 只过滤文件名，隐藏目录（如 .well-known）照常遍历。
			if isHiddenOrBackup(name) {
				continue
			}
			if err := w.loadFile(full, info); err != nil {
				return err
			}
		}
	}
	return nil
}

func isHiddenOrBackup(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}

// seen 防止符号链接形成的目录环导致无限递归。
func (w *walker) seen(info os.FileInfo) bool {
	for _, prior := range w.visited {
		if os.SameFile(prior, info) {
			return true
		}
	}
	return false
}

func (w *walker) loadFile(full string, info os.FileInfo) error {
	c := w.cache
	size := info.Size()
	if size > MaxFileSize {
		return nil
	}
	if c.total.Load()+size > c.maxSize {
		return nil
	}

	content, err := afero.ReadFile(c.fs, full)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"action": "cache_init",
			"path":   full,
		}).Warn("加载文件到缓存失败")
		return nil
	}

	key := c.relativeKey(full)
	mime := contenttype.Resolve(key)
	if c.admit(key, content, mime, info.ModTime().Unix(), c.now().Unix()) {
		w.loaded++
	}

	if c.total.Load() > c.maxSize {
		return errBudgetReached
	}
	return nil
}

// relativeKey 去掉根目录前缀并统一为正斜杠。
func (c *FileCache) relativeKey(full string) string {
	rel, err := filepath.Rel(c.root, full)
	if err != nil {
		rel = full
	}
	rel = filepath.ToSlash(rel)
	return strings.ReplaceAll(rel, "\\", "/")
}
