package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(cfg.Static.RootDirectory)
	if err != nil {
		return nil, fmt.Errorf("无法解析根目录: %w", err)
	}
	cfg.Static.RootDirectory = absRoot

	absErrors, err := filepath.Abs(cfg.Static.ErrorPagesDirectory)
	if err != nil {
		return nil, fmt.Errorf("无法解析错误页目录: %w", err)
	}
	cfg.Static.ErrorPagesDirectory = absErrors

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.name", "RouterWay")
	v.SetDefault("server.max_cache_size", "100MB")
	v.SetDefault("server.cache_enabled", true)
	v.SetDefault("server.max_connections", 1000)
	v.SetDefault("server.cache_max_age", "1h")
	v.SetDefault("server.cleanup_interval", "5m")
	v.SetDefault("server.upstream_timeout", "30s")
	v.SetDefault("server.diagnostics", false)
	v.SetDefault("static.root_directory", "./Public")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)
}

func applyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.Port == 0 {
		s.Port = 8080
	}
	if strings.TrimSpace(s.Name) == "" {
		s.Name = "RouterWay"
	}
	if s.CacheMaxAge.DurationValue() == 0 {
		s.CacheMaxAge = Duration(time.Hour)
	}
	if s.CleanupInterval.DurationValue() == 0 {
		s.CleanupInterval = Duration(5 * time.Minute)
	}
	if s.UpstreamTimeout.DurationValue() == 0 {
		s.UpstreamTimeout = Duration(30 * time.Second)
	}
	if cfg.Static.ErrorPagesDirectory == "" && cfg.Static.RootDirectory != "" {
		cfg.Static.ErrorPagesDirectory = filepath.Join(cfg.Static.RootDirectory, "Errors")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	for i := range cfg.API {
		cfg.API[i].Name = strings.TrimSpace(cfg.API[i].Name)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
