// Package dispatch 实现请求分派的纯决策：不做 I/O，只根据方法、原始路径与路由表
// 给出预检、错误、代理或静态文件之一。
package dispatch

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/routerway/routerway/internal/cache"
	"github.com/routerway/routerway/internal/config"
)

var (
	// ErrDecoding 表示路径百分号解码后不是合法 UTF-8。
	ErrDecoding = errors.New("invalid path encoding")
	// ErrPathTraversal 表示规范化后的路径包含 ".." 或 "//"。
	ErrPathTraversal = errors.New("path traversal rejected")
)

// Kind 是分派结果的类别。
type Kind int

const (
	KindStatic Kind = iota
	KindPreflight
	KindBadRequest
	KindProxy
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindPreflight:
		return "preflight"
	case KindBadRequest:
		return "bad_request"
	case KindProxy:
		return "proxy"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decision 描述一次请求应如何处理。
type Decision struct {
	Kind Kind
	// Path 为解码后的请求路径，预检与解码失败时为空。
	Path string
	// Key 为静态请求规范化后的缓存键。
	Key string
	// Route 仅在 KindProxy 时非空。
	Route *config.ApiRoute
	Err   error
}

// Decide 按 预检 → 解码 → 路由前缀 → 路径安全 的顺序做出决策。
func Decide(method, rawPath string, routes *RouteTable) Decision {
	if method == http.MethodOptions {
		return Decision{Kind: KindPreflight}
	}

	decoded, err := PercentDecode(rawPath)
	if err != nil {
		return Decision{Kind: KindBadRequest, Err: err}
	}

	if route, ok := routes.Match(decoded); ok {
		return Decision{Kind: KindProxy, Path: decoded, Route: route}
	}

	key := cache.NormalizeKey(decoded)
	if strings.Contains(key, "..") || strings.Contains(key, "//") {
		return Decision{Kind: KindForbidden, Path: decoded, Key: key, Err: ErrPathTraversal}
	}
	return Decision{Kind: KindStatic, Path: decoded, Key: key}
}

// PercentDecode 解码合法的 %XX 序列，非法转义按原样保留，结果必须是合法 UTF-8。
func PercentDecode(raw string) (string, error) {
	if strings.IndexByte(raw, '%') < 0 {
		if !utf8.ValidString(raw) {
			return "", ErrDecoding
		}
		return raw, nil
	}

	buf := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '%' && i+2 < len(raw) {
			hi, okHi := unhex(raw[i+1])
			lo, okLo := unhex(raw[i+2])
			if okHi && okLo {
				buf = append(buf, hi<<4|lo)
				i += 2
				continue
			}
		}
		buf = append(buf, raw[i])
	}
	if !utf8.Valid(buf) {
		return "", ErrDecoding
	}
	return string(buf), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
