package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供请求类型/方法/路径/命中状态字段，供静态与代理日志复用。
func RequestFields(kind, method, path string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"kind":      kind,
		"method":    method,
		"path":      path,
		"cache_hit": cacheHit,
	}
}
