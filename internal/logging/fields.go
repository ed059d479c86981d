package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// LifecycleFields 提供 install/activate 阶段日志的公共字段。
func LifecycleFields(stage, version string) logrus.Fields {
	return logrus.Fields{
		"action":  "lifecycle",
		"stage":   stage,
		"version": version,
	}
}

// RequestFields 提供请求分类与策略结果字段，供拦截层日志复用。
func RequestFields(class, strategy, cacheResult, path string) logrus.Fields {
	return logrus.Fields{
		"class":        class,
		"strategy":     strategy,
		"cache_result": cacheResult,
		"path":         path,
	}
}
