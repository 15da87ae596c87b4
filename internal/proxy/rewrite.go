package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/routerway/routerway/internal/config"
)

// ErrInvalidTarget 表示改写后的目标无法解析为带 scheme 与 host 的绝对 URL。
var ErrInvalidTarget = errors.New("invalid proxy target")

// Rewrite 只替换 decodedPath 中第一次出现的 route.From，其余部分原样保留；
// rawQuery 非空时附加到目标 URL。
func Rewrite(route *config.ApiRoute, decodedPath, rawQuery string) (*url.URL, error) {
	if route == nil {
		return nil, fmt.Errorf("%w: route is nil", ErrInvalidTarget)
	}
	target := strings.Replace(decodedPath, route.From, route.To, 1)

	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTarget, target, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, target)
	}
	if rawQuery != "" {
		parsed.RawQuery = rawQuery
	}
	return parsed, nil
}
