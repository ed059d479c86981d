// Package shell models the version-pinned asset manifest: the fixed set of
// resources the installer precaches and the fetch interceptor treats as
// cache-first. Matching is exact set membership against normalized paths,
// never substring comparison, so an unrelated URL that merely contains an
// asset path cannot be misclassified.
package shell

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Asset 描述清单内的单个条目：配置原文、存储键以及抓取地址。
type Asset struct {
	Raw      string
	Key      string
	FetchURL string
	External bool
}

// Manifest 持有规范化后的资源清单，提供安装枚举与请求分类两种视角。
type Manifest struct {
	assets    []Asset
	paths     map[string]Asset
	externals map[string]Asset
}

// NewManifest 基于上游源站与配置条目构建清单。本地路径相对 upstream 解析，
// 绝对 URL 条目按原样抓取并以 __ext 前缀写入静态存储。
func NewManifest(upstream *url.URL, entries []string) (*Manifest, error) {
	if upstream == nil {
		return nil, fmt.Errorf("upstream url required")
	}

	m := &Manifest{
		paths:     make(map[string]Asset, len(entries)),
		externals: make(map[string]Asset),
	}

	for _, raw := range entries {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "/") || !strings.Contains(trimmed, "://") {
			key := NormalizePath(trimmed)
			asset := Asset{
				Raw:      raw,
				Key:      key,
				FetchURL: upstream.ResolveReference(&url.URL{Path: key}).String(),
			}
			m.paths[key] = asset
			m.assets = append(m.assets, asset)
			continue
		}

		parsed, err := url.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid manifest entry %q: %w", raw, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("unsupported scheme in manifest entry %q", raw)
		}
		asset := Asset{
			Raw:      raw,
			Key:      externalKey(parsed),
			FetchURL: parsed.String(),
			External: true,
		}
		m.externals[externalIdentity(parsed.Host, parsed.Path)] = asset
		m.assets = append(m.assets, asset)
	}

	return m, nil
}

// Assets 返回安装阶段需要抓取的全部条目，顺序与配置一致。
func (m *Manifest) Assets() []Asset {
	return append([]Asset(nil), m.assets...)
}

// Len 返回清单条目数。
func (m *Manifest) Len() int {
	return len(m.assets)
}

// MatchPath 判断请求路径是否命中本地清单（含根路径）。
func (m *Manifest) MatchPath(reqPath string) (Asset, bool) {
	normalized := NormalizePath(reqPath)
	if asset, ok := m.paths[normalized]; ok {
		return asset, true
	}
	if normalized == "/" {
		return Asset{Key: "/"}, true
	}
	return Asset{}, false
}

// MatchExternal 判断 host+path 是否命中外部条目。
func (m *Manifest) MatchExternal(host, reqPath string) (Asset, bool) {
	if len(m.externals) == 0 {
		return Asset{}, false
	}
	asset, ok := m.externals[externalIdentity(host, reqPath)]
	return asset, ok
}

// NormalizePath 去除前导分隔符差异并折叠相对段，空路径归一为根路径。
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "/")
	return path.Clean("/" + p)
}

func externalIdentity(host, reqPath string) string {
	return strings.ToLower(host) + "::" + NormalizePath(reqPath)
}

func externalKey(u *url.URL) string {
	return "/__ext/" + strings.ToLower(u.Host) + NormalizePath(u.Path)
}
