package config

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	kib = int64(1024)
	mib = 1024 * kib
	gib = 1024 * mib
)

// sizeSuffixes 的顺序很重要：双字母后缀必须先于单字母后缀匹配。
var sizeSuffixes = []struct {
	suffix     string
	multiplier int64
}{
	{"kb", kib},
	{"mb", mib},
	{"gb", gib},
	{"k", kib},
	{"m", mib},
	{"g", gib},
}

// ParseCacheSize 解析 "512KB"、"100m"、"1G" 或纯数字字节数，单位大小写不敏感，按 1024 进制换算。
func ParseCacheSize(raw string) (int64, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, fmt.Errorf("无效的缓存大小: %q", raw)
	}

	multiplier := int64(1)
	for _, s := range sizeSuffixes {
		if strings.HasSuffix(value, s.suffix) {
			value = strings.TrimSpace(strings.TrimSuffix(value, s.suffix))
			multiplier = s.multiplier
			break
		}
	}

	num, err := strconv.ParseUint(value, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("无效的缓存大小: %q", raw)
	}
	size := int64(num)
	if size > 0 && size > (1<<63-1)/multiplier {
		return 0, fmt.Errorf("缓存大小溢出: %q", raw)
	}
	return size * multiplier, nil
}
