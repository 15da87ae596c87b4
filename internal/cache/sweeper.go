package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RunSweeper 按 interval 周期调用 Cleanup(maxAge)，直到 ctx 结束。
// 调用方应在独立 goroutine 中运行；禁用的缓存直接返回。
func (c *FileCache) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	if !c.enabled || interval <= 0 {
		return
	}

	c.logger.WithFields(logrus.Fields{
		"action":   "cache_sweeper",
		"interval": interval.String(),
		"max_age":  maxAge.String(),
	}).Info("缓存清理任务已启动")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.WithField("action", "cache_sweeper").Info("缓存清理任务已停止")
			return
		case <-ticker.C:
			c.Cleanup(maxAge)
		}
	}
}
