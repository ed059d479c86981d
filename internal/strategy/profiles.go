// Package strategy declares the retrieval strategy profiles the fetch
// interceptor binds to each request class, plus a registry the diagnostics
// endpoint reads from.
package strategy

// Kind 描述一个检索策略的基本形态。
type Kind string

const (
	// KindCacheFirst 优先读取本地存储，未命中才回源，且回源结果不写缓存。
	KindCacheFirst Kind = "cache-first"
	// KindNetworkFirst 优先回源，成功时写缓存，失败时回退到历史缓存。
	KindNetworkFirst Kind = "network-first"
	// KindPassthrough 直接透传，不读写任何存储。
	KindPassthrough Kind = "passthrough"
)

// 内置策略键，拦截层按请求分类查找。
const (
	KeyShellAsset  = "shell-asset"
	KeyNewsAPI     = "news-api"
	KeyPassthrough = "passthrough"
)

// Profile 记录一个策略的静态信息，供拦截层执行与诊断端展示。
type Profile struct {
	Key           string
	Kind          Kind
	Description   string
	StoresOnFetch bool
	ServesStale   bool
}

func init() {
	MustRegister(Profile{
		Key:           KeyShellAsset,
		Kind:          KindCacheFirst,
		Description:   "version-pinned shell assets, served from the static store",
		StoresOnFetch: false,
		ServesStale:   false,
	})
	MustRegister(Profile{
		Key:           KeyNewsAPI,
		Kind:          KindNetworkFirst,
		Description:   "dynamic news responses, refreshed online and replayed offline",
		StoresOnFetch: true,
		ServesStale:   true,
	})
	MustRegister(Profile{
		Key:           KeyPassthrough,
		Kind:          KindPassthrough,
		Description:   "everything else, forwarded without storage side effects",
		StoresOnFetch: false,
		ServesStale:   false,
	})
}
