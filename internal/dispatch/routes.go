package dispatch

import (
	"strings"

	"github.com/routerway/routerway/internal/config"
)

// RouteTable 保存按声明顺序排列的代理路由，构造后只读，可并发使用。
type RouteTable struct {
	routes []config.ApiRoute
}

// NewRouteTable 复制 routes，避免调用方后续修改影响匹配。
func NewRouteTable(routes []config.ApiRoute) *RouteTable {
	copied := make([]config.ApiRoute, len(routes))
	copy(copied, routes)
	return &RouteTable{routes: copied}
}

// Match 返回第一个 From 为 path 前缀的路由。
func (t *RouteTable) Match(path string) (*config.ApiRoute, bool) {
	if t == nil {
		return nil, false
	}
	for i := range t.routes {
		if strings.HasPrefix(path, t.routes[i].From) {
			return &t.routes[i], true
		}
	}
	return nil, false
}

// List 返回路由副本，用于启动日志与诊断。
func (t *RouteTable) List() []config.ApiRoute {
	if t == nil {
		return nil
	}
	out := make([]config.ApiRoute, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len 返回路由数量。
func (t *RouteTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.routes)
}
