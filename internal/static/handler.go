// Package static 按 缓存 → 磁盘 → 404 错误页 的顺序返回静态文件。
package static

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/routerway/routerway/internal/cache"
	"github.com/routerway/routerway/internal/contenttype"
	"github.com/routerway/routerway/internal/errpage"
	"github.com/routerway/routerway/internal/headers"
	"github.com/routerway/routerway/internal/logging"
	"github.com/routerway/routerway/internal/server"
)

// Handler 实现 server.StaticHandler。
type Handler struct {
	cache  *cache.FileCache
	disk   *cache.Disk
	pages  *errpage.Resolver
	logger *logrus.Logger
}

// NewHandler 构造静态文件处理器，disk 指向站点根目录。
func NewHandler(fileCache *cache.FileCache, disk *cache.Disk, pages *errpage.Resolver, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		cache:  fileCache,
		disk:   disk,
		pages:  pages,
		logger: logger,
	}
}

// Serve 返回 key 对应的文件。key 已由 dispatch 规范化并通过安全检查。
func (h *Handler) Serve(c fiber.Ctx, key string) error {
	if entry := h.cache.Get(key); entry != nil {
		h.logServe(c, key, true, fiber.StatusOK, "从缓存返回文件")
		headers.SetStatic(c, entry.Mime)
		return c.Status(fiber.StatusOK).Send(entry.Content())
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	content, err := h.disk.Read(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"action":     "static",
				"key":        key,
				"request_id": server.RequestID(c),
			}).Warn("读取静态文件失败")
		}
		page := h.pages.Resolve(ctx, fiber.StatusNotFound)
		h.logServe(c, key, false, fiber.StatusNotFound, "文件不存在，返回 404 页面")
		return page.Write(c)
	}

	mime := contenttype.Resolve(key)
	h.cache.Insert(key, content, mime)
	h.logServe(c, key, false, fiber.StatusOK, "从文件系统读取")
	headers.SetStatic(c, mime)
	return c.Status(fiber.StatusOK).Send(content)
}

func (h *Handler) logServe(c fiber.Ctx, key string, cacheHit bool, status int, msg string) {
	if !h.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	fields := logging.RequestFields("static", c.Method(), key, cacheHit)
	fields["action"] = "static"
	fields["status"] = status
	if reqID := server.RequestID(c); reqID != "" {
		fields["request_id"] = reqID
	}
	h.logger.WithFields(fields).Debug(msg)
}
