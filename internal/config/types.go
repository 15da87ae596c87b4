package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// ServerConfig 描述监听端口、缓存预算以及后台清理节奏。
type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Name            string   `mapstructure:"name"`
	MaxCacheSize    string   `mapstructure:"max_cache_size"`
	CacheEnabled    bool     `mapstructure:"cache_enabled"`
	MaxConnections  int      `mapstructure:"max_connections"`
	CacheMaxAge     Duration `mapstructure:"cache_max_age"`
	CleanupInterval Duration `mapstructure:"cleanup_interval"`
	UpstreamTimeout Duration `mapstructure:"upstream_timeout"`
	Diagnostics     bool     `mapstructure:"diagnostics"`

	// CacheBudget 是 MaxCacheSize 解析后的字节数，由 Load 填充。
	CacheBudget int64 `mapstructure:"-"`
}

// StaticConfig 指定静态资源根目录与错误页目录。
type StaticConfig struct {
	RootDirectory       string `mapstructure:"root_directory"`
	ErrorPagesDirectory string `mapstructure:"error_pages_directory"`
}

// LogConfig 控制日志级别与滚动文件输出。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// ApiRoute 是一条前缀改写规则：From 前缀命中后替换为 To 并转发。
// 配置中的顺序即匹配优先级，先命中者生效。
type ApiRoute struct {
	Name string `mapstructure:"name"`
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Static StaticConfig `mapstructure:"static"`
	Log    LogConfig    `mapstructure:"log"`
	API    []ApiRoute   `mapstructure:"api"`
}

// RouteSummaries 返回 name:from->to 形式的摘要，供启动日志使用。
func RouteSummaries(routes []ApiRoute) []string {
	if len(routes) == 0 {
		return nil
	}
	result := make([]string, len(routes))
	for i, route := range routes {
		result[i] = fmt.Sprintf("%s:%s->%s", route.Name, route.From, route.To)
	}
	return result
}
