package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.InstallConcurrency < 1 {
		return newFieldError("Global.InstallConcurrency", "必须大于等于 1")
	}

	s := c.Shell
	if err := validateVersionTag(s.Version); err != nil {
		return fmt.Errorf("Shell.Version: %w", err)
	}
	if err := validateUpstream(s.Upstream); err != nil {
		return fmt.Errorf("Shell.Upstream: %w", err)
	}
	if !strings.HasPrefix(s.APIPrefix, "/") {
		return newFieldError("Shell.APIPrefix", "必须以 / 开头")
	}
	if len(s.PrecacheAssets) == 0 {
		return newFieldError("Shell.PrecacheAssets", "至少需要一个预缓存条目")
	}

	seen := map[string]struct{}{}
	hasRoot := false
	for i, asset := range s.PrecacheAssets {
		if asset == "" {
			return newFieldError(assetField(i), "不能为空")
		}
		if _, dup := seen[asset]; dup {
			return newFieldError(assetField(i), "重复条目: "+asset)
		}
		seen[asset] = struct{}{}

		if asset == "/" {
			hasRoot = true
			continue
		}
		if strings.HasPrefix(asset, "/") {
			continue
		}
		if err := validateUpstream(asset); err != nil {
			return fmt.Errorf("%s: %w", assetField(i), err)
		}
	}
	if !hasRoot {
		return newFieldError("Shell.PrecacheAssets", "必须包含根路径 /")
	}

	return nil
}

// validateVersionTag 确保版本号可以安全拼入存储目录名。
func validateVersionTag(version string) error {
	if version == "" {
		return errors.New("不能为空")
	}
	if strings.ContainsAny(version, "/\\ ") {
		return errors.New("不允许包含路径分隔符或空格")
	}
	if version == "." || version == ".." {
		return errors.New("非法版本号")
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
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
