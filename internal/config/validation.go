package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
// 校验通过后 Server.CacheBudget 会被填充为解析后的字节数。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	s := &c.Server
	if s.Port <= 0 || s.Port > 65535 {
		return newFieldError("server.port", "必须在 1-65535")
	}
	budget, err := ParseCacheSize(s.MaxCacheSize)
	if err != nil {
		return newFieldError("server.max_cache_size", err.Error())
	}
	s.CacheBudget = budget
	if s.MaxConnections < 0 {
		return newFieldError("server.max_connections", "不能为负数")
	}
	if s.CacheMaxAge.DurationValue() <= 0 {
		return newFieldError("server.cache_max_age", "必须大于 0")
	}
	if s.CleanupInterval.DurationValue() <= 0 {
		return newFieldError("server.cleanup_interval", "必须大于 0")
	}
	if s.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("server.upstream_timeout", "必须大于 0")
	}

	if strings.TrimSpace(c.Static.RootDirectory) == "" {
		return newFieldError("static.root_directory", "不能为空")
	}

	seenNames := map[string]struct{}{}
	for i := range c.API {
		route := &c.API[i]
		if route.Name == "" {
			return newFieldError(apiField(i, "", "name"), "不能为空")
		}
		if _, exists := seenNames[route.Name]; exists {
			return newFieldError(apiField(i, route.Name, "name"), "重复")
		}
		seenNames[route.Name] = struct{}{}

		if !strings.HasPrefix(route.From, "/") {
			return newFieldError(apiField(i, route.Name, "from"), "必须以 / 开头")
		}
		if err := validateUpstream(route.To); err != nil {
			return fmt.Errorf("%s: %w", apiField(i, route.Name, "to"), err)
		}
	}

	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
