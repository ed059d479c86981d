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

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为：监听端口、日志、缓存目录与上游超时。
type GlobalConfig struct {
	ListenPort         int      `mapstructure:"ListenPort"`
	LogLevel           string   `mapstructure:"LogLevel"`
	LogFilePath        string   `mapstructure:"LogFilePath"`
	LogMaxSize         int      `mapstructure:"LogMaxSize"`
	LogMaxBackups      int      `mapstructure:"LogMaxBackups"`
	LogCompress        bool     `mapstructure:"LogCompress"`
	StoragePath        string   `mapstructure:"StoragePath"`
	UpstreamTimeout    Duration `mapstructure:"UpstreamTimeout"`
	InstallConcurrency int      `mapstructure:"InstallConcurrency"`
}

// ShellConfig 决定离线壳的版本、上游源站以及需要预缓存的资源清单。
// Version 会拼进两个命名存储目录名，因此一旦变更，激活阶段会清掉旧版本的全部条目。
type ShellConfig struct {
	Version        string   `mapstructure:"Version"`
	Upstream       string   `mapstructure:"Upstream"`
	APIPrefix      string   `mapstructure:"APIPrefix"`
	PrecacheAssets []string `mapstructure:"PrecacheAssets"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	Shell  ShellConfig  `mapstructure:"Shell"`
}

// StaticStoreName 返回当前版本的静态资源存储名。
func (s ShellConfig) StaticStoreName() string {
	return "static-assets-" + s.Version
}

// NewsStoreName 返回当前版本的动态新闻存储名。
func (s ShellConfig) NewsStoreName() string {
	return "dynamic-news-" + s.Version
}

// AllowedStoreNames 返回激活阶段允许保留的存储名单，恰好两个。
func (s ShellConfig) AllowedStoreNames() []string {
	return []string{s.StaticStoreName(), s.NewsStoreName()}
}
