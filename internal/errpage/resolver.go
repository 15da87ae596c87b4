package errpage

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/routerway/routerway/internal/cache"
)

// Resolver 按 缓存 Errors/<file> → 磁盘错误页目录 → 内置页面 的顺序解析错误页。
type Resolver struct {
	cache  *cache.FileCache
	disk   *cache.Disk
	logger *logrus.Logger
}

// NewResolver 构造 Resolver；fileCache 与 disk 均可为空，此时跳过对应层级。
func NewResolver(fileCache *cache.FileCache, disk *cache.Disk, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{cache: fileCache, disk: disk, logger: logger}
}

// Resolve 总能返回一份页面，Status 始终等于调用方传入的状态码。
func (r *Resolver) Resolve(ctx context.Context, status int) Page {
	name := FileName(status)

	if r.cache != nil {
		if entry := r.cache.Get("Errors/" + name); entry != nil {
			return Page{Status: status, Body: entry.Content(), Source: SourceCache}
		}
	}

	if r.disk != nil {
		content, err := r.disk.Read(ctx, name)
		if err == nil {
			return Page{Status: status, Body: content, Source: SourceDisk}
		}
		if !errors.Is(err, cache.ErrNotFound) {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"action": "error_page",
				"status": status,
				"file":   name,
			}).Warn("读取错误页失败")
		}
	}

	return Synthesize(status, DefaultMessage(status))
}
