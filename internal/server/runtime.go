package server

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/news-shell/news-shell/internal/config"
	"github.com/news-shell/news-shell/internal/shell"
)

// AppRuntime 将 Shell 配置与派生属性（解析后的上游 URL、规范化清单、两个
// 存储名）聚合在一起，供路由/拦截层直接复用，避免重复解析配置。
type AppRuntime struct {
	// Config 是用户在 config.toml 中声明的 Shell 字段副本，避免外部修改。
	Config config.ShellConfig
	// ListenPort 记录当前 CLI 监听端口，方便日志/转发头输出。
	ListenPort int
	// UpstreamURL 在启动阶段提前解析完成，便于后续请求快速复用。
	UpstreamURL *url.URL
	// Manifest 是规范化后的壳资源清单，分类与安装共用同一份。
	Manifest *shell.Manifest
	// StaticStoreName/NewsStoreName 内嵌版本号，激活白名单恰好是这两个。
	StaticStoreName string
	NewsStoreName   string
}

// NewAppRuntime 根据配置构建运行时视图。调用方应在启动阶段创建一次并复用。
func NewAppRuntime(cfg *config.Config) (*AppRuntime, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	upstreamURL, err := url.Parse(cfg.Shell.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream: %w", err)
	}

	manifest, err := shell.NewManifest(upstreamURL, cfg.Shell.PrecacheAssets)
	if err != nil {
		return nil, fmt.Errorf("build manifest: %w", err)
	}

	return &AppRuntime{
		Config:          cfg.Shell,
		ListenPort:      cfg.Global.ListenPort,
		UpstreamURL:     upstreamURL,
		Manifest:        manifest,
		StaticStoreName: cfg.Shell.StaticStoreName(),
		NewsStoreName:   cfg.Shell.NewsStoreName(),
	}, nil
}
