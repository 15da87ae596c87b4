package routes

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v3"

	"github.com/routerway/routerway/internal/cache"
	"github.com/routerway/routerway/internal/config"
	"github.com/routerway/routerway/internal/dispatch"
)

// StatsSource 提供缓存快照，*cache.FileCache 即满足该接口。
type StatsSource interface {
	Stats() cache.Stats
}

// RegisterDiagnosticsRoutes 暴露 /-/cache 与 /-/routes 诊断接口，供运维查看缓存占用与代理路由。
func RegisterDiagnosticsRoutes(app *fiber.App, stats StatsSource, table *dispatch.RouteTable) {
	if app == nil || stats == nil {
		return
	}

	app.Get("/-/cache", func(c fiber.Ctx) error {
		return c.JSON(encodeStats(stats.Stats()))
	})

	app.Get("/-/routes", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"routes": encodeRoutes(table.List()),
		})
	})

	app.Get("/-/routes/:name", func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		if name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "route_name_required"})
		}
		for i, route := range table.List() {
			if route.Name == name {
				return c.JSON(encodeRoute(i, route))
			}
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "route_not_found"})
	})
}

type statsPayload struct {
	Enabled    bool   `json:"enabled"`
	Entries    int64  `json:"entries"`
	TotalBytes int64  `json:"total_bytes"`
	MaxBytes   int64  `json:"max_bytes"`
	TotalHuman string `json:"total_human"`
	MaxHuman   string `json:"max_human"`
}

type routePayload struct {
	Priority int    `json:"priority"`
	Name     string `json:"name"`
	From     string `json:"from"`
	To       string `json:"to"`
}

func encodeStats(s cache.Stats) statsPayload {
	return statsPayload{
		Enabled:    s.Enabled,
		Entries:    s.Entries,
		TotalBytes: s.TotalBytes,
		MaxBytes:   s.MaxBytes,
		TotalHuman: humanize.IBytes(uint64(max(s.TotalBytes, 0))),
		MaxHuman:   humanize.IBytes(uint64(max(s.MaxBytes, 0))),
	}
}

func encodeRoutes(routes []config.ApiRoute) []routePayload {
	result := make([]routePayload, 0, len(routes))
	for i, route := range routes {
		result = append(result, encodeRoute(i, route))
	}
	return result
}

func encodeRoute(idx int, route config.ApiRoute) routePayload {
	return routePayload{
		Priority: idx,
		Name:     route.Name,
		From:     route.From,
		To:       route.To,
	}
}
