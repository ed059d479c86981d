package proxy

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/news-shell/news-shell/internal/cache"
	"github.com/news-shell/news-shell/internal/server"
	"github.com/news-shell/news-shell/internal/shell"
	"github.com/news-shell/news-shell/internal/strategy"
)

// Class 标识拦截层对单个请求的分类结论。
type Class string

const (
	ClassShellAsset  Class = "shell-asset"
	ClassNewsAPI     Class = "news-api"
	ClassPassthrough Class = "passthrough"
	ClassBypass      Class = "bypass"
)

// Classification 组合分类结论、策略键、存储定位与回源地址。
// Bypass 不携带 Locator/NetworkURL。
type Classification struct {
	Class       Class
	StrategyKey string
	Locator     cache.Locator
	NetworkURL  string
}

// ClassifyInput 是分类所需的请求快照，便于脱离 fiber 做单元测试。
type ClassifyInput struct {
	Method   string
	Scheme   string
	Host     string
	Path     string
	RawQuery []byte
}

// Classify 按固定顺序给请求定类：先排除非 http(s) scheme（扩展内部资源的
// 对应物），再做壳资源精确匹配，然后才轮到新闻 API 前缀判断；两者都不命中
// 的请求（含对 API 前缀的非 GET 调用）一律透传。壳匹配优先于 API 前缀匹配。
func Classify(rt *server.AppRuntime, input ClassifyInput) Classification {
	scheme := strings.ToLower(strings.TrimSpace(input.Scheme))
	if scheme != "" && scheme != "http" && scheme != "https" {
		return Classification{Class: ClassBypass}
	}

	cleanPath := shell.NormalizePath(input.Path)

	if asset, ok := rt.Manifest.MatchPath(cleanPath); ok {
		return Classification{
			Class:       ClassShellAsset,
			StrategyKey: strategy.KeyShellAsset,
			Locator:     cache.Locator{StoreName: rt.StaticStoreName, Path: asset.Key},
			NetworkURL:  shellNetworkURL(rt, asset, cleanPath),
		}
	}
	if asset, ok := rt.Manifest.MatchExternal(input.Host, cleanPath); ok {
		return Classification{
			Class:       ClassShellAsset,
			StrategyKey: strategy.KeyShellAsset,
			Locator:     cache.Locator{StoreName: rt.StaticStoreName, Path: asset.Key},
			NetworkURL:  asset.FetchURL,
		}
	}

	if input.Method == http.MethodGet && strings.HasPrefix(cleanPath, rt.Config.APIPrefix) {
		return Classification{
			Class:       ClassNewsAPI,
			StrategyKey: strategy.KeyNewsAPI,
			Locator:     cache.Locator{StoreName: rt.NewsStoreName, Path: newsEntryPath(cleanPath, input.RawQuery)},
			NetworkURL:  resolveUpstream(rt, cleanPath, input.RawQuery),
		}
	}

	return Classification{
		Class:       ClassPassthrough,
		StrategyKey: strategy.KeyPassthrough,
		NetworkURL:  resolveUpstream(rt, cleanPath, input.RawQuery),
	}
}

func shellNetworkURL(rt *server.AppRuntime, asset shell.Asset, cleanPath string) string {
	if asset.FetchURL != "" {
		return asset.FetchURL
	}
	return resolveUpstream(rt, cleanPath, nil)
}

// newsEntryPath 将路径与查询串折叠成稳定的存储键，查询串以 sha1 摘要区分。
func newsEntryPath(cleanPath string, rawQuery []byte) string {
	if len(rawQuery) == 0 {
		return cleanPath
	}
	sum := sha1.Sum(rawQuery)
	return fmt.Sprintf("%s/__qs/%s", cleanPath, hex.EncodeToString(sum[:]))
}

func resolveUpstream(rt *server.AppRuntime, cleanPath string, rawQuery []byte) string {
	u := *rt.UpstreamURL
	u.Path = cleanPath
	u.RawPath = ""
	if len(rawQuery) > 0 {
		u.RawQuery = string(rawQuery)
	} else {
		u.RawQuery = ""
	}
	return u.String()
}
