package proxy

import (
	"net/http"
	"testing"

	"github.com/news-shell/news-shell/internal/config"
	"github.com/news-shell/news-shell/internal/server"
	"github.com/news-shell/news-shell/internal/strategy"
)

func newTestRuntime(t *testing.T) *server.AppRuntime {
	t.Helper()
	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000},
		Shell: config.ShellConfig{
			Version:   "v3",
			Upstream:  "http://app.local:3000",
			APIPrefix: "/api/news",
			PrecacheAssets: []string{
				"/",
				"/index.html",
				"/css/style.css",
				"https://cdn.example.com/fonts/inter.woff2",
			},
		},
	}
	rt, err := server.NewAppRuntime(cfg)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return rt
}

func TestClassifyShellAsset(t *testing.T) {
	rt := newTestRuntime(t)

	for _, reqPath := range []string{"/", "/index.html", "index.html", "/css/style.css"} {
		cls := Classify(rt, ClassifyInput{Method: http.MethodGet, Scheme: "http", Path: reqPath})
		if cls.Class != ClassShellAsset {
			t.Fatalf("Classify(%q) = %s, want shell-asset", reqPath, cls.Class)
		}
		if cls.StrategyKey != strategy.KeyShellAsset {
			t.Fatalf("unexpected strategy for %q: %s", reqPath, cls.StrategyKey)
		}
		if cls.Locator.StoreName != "static-assets-v3" {
			t.Fatalf("unexpected store for %q: %s", reqPath, cls.Locator.StoreName)
		}
	}
}

func TestClassifyRejectsSubstringMatches(t *testing.T) {
	rt := newTestRuntime(t)

	// 包含清单条目作为子串的无关路径必须落入透传。
	for _, reqPath := range []string{"/vendor/index.html.bak", "/x/css/style.css", "/index.htmlx"} {
		cls := Classify(rt, ClassifyInput{Method: http.MethodGet, Scheme: "http", Path: reqPath})
		if cls.Class != ClassPassthrough {
			t.Fatalf("Classify(%q) = %s, want passthrough", reqPath, cls.Class)
		}
	}
}

func TestClassifyNewsAPI(t *testing.T) {
	rt := newTestRuntime(t)

	cls := Classify(rt, ClassifyInput{Method: http.MethodGet, Scheme: "http", Path: "/api/news/top"})
	if cls.Class != ClassNewsAPI {
		t.Fatalf("expected news-api, got %s", cls.Class)
	}
	if cls.Locator.StoreName != "dynamic-news-v3" {
		t.Fatalf("unexpected store: %s", cls.Locator.StoreName)
	}
	if cls.Locator.Path != "/api/news/top" {
		t.Fatalf("unexpected entry path: %s", cls.Locator.Path)
	}
	if cls.NetworkURL != "http://app.local:3000/api/news/top" {
		t.Fatalf("unexpected network url: %s", cls.NetworkURL)
	}
}

func TestClassifyNewsAPIQueryDigest(t *testing.T) {
	rt := newTestRuntime(t)

	withQuery := Classify(rt, ClassifyInput{
		Method:   http.MethodGet,
		Scheme:   "http",
		Path:     "/api/news/search",
		RawQuery: []byte("q=go"),
	})
	if withQuery.Locator.Path == "/api/news/search" {
		t.Fatalf("query must contribute to entry identity")
	}

	same := Classify(rt, ClassifyInput{
		Method:   http.MethodGet,
		Scheme:   "http",
		Path:     "/api/news/search",
		RawQuery: []byte("q=go"),
	})
	if same.Locator.Path != withQuery.Locator.Path {
		t.Fatalf("identical requests must map to identical entries")
	}

	other := Classify(rt, ClassifyInput{
		Method:   http.MethodGet,
		Scheme:   "http",
		Path:     "/api/news/search",
		RawQuery: []byte("q=rust"),
	})
	if other.Locator.Path == withQuery.Locator.Path {
		t.Fatalf("different queries must map to different entries")
	}
}

func TestClassifyNonGETNewsIsPassthrough(t *testing.T) {
	rt := newTestRuntime(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		cls := Classify(rt, ClassifyInput{Method: method, Scheme: "http", Path: "/api/news/comments"})
		if cls.Class != ClassPassthrough {
			t.Fatalf("Classify(%s /api/news/comments) = %s, want passthrough", method, cls.Class)
		}
	}
}

func TestClassifyShellWinsOverNewsPrefix(t *testing.T) {
	cfg := &config.Config{
		Global: config.GlobalConfig{ListenPort: 5000},
		Shell: config.ShellConfig{
			Version:        "v3",
			Upstream:       "http://app.local:3000",
			APIPrefix:      "/api/news",
			PrecacheAssets: []string{"/", "/api/news/boot.json"},
		},
	}
	rt, err := server.NewAppRuntime(cfg)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}

	cls := Classify(rt, ClassifyInput{Method: http.MethodGet, Scheme: "http", Path: "/api/news/boot.json"})
	if cls.Class != ClassShellAsset {
		t.Fatalf("manifest entry under API prefix must classify as shell asset, got %s", cls.Class)
	}
}

func TestClassifyExternalAsset(t *testing.T) {
	rt := newTestRuntime(t)

	cls := Classify(rt, ClassifyInput{
		Method: http.MethodGet,
		Scheme: "https",
		Host:   "cdn.example.com",
		Path:   "/fonts/inter.woff2",
	})
	if cls.Class != ClassShellAsset {
		t.Fatalf("expected shell-asset for external entry, got %s", cls.Class)
	}
	if cls.NetworkURL != "https://cdn.example.com/fonts/inter.woff2" {
		t.Fatalf("unexpected network url: %s", cls.NetworkURL)
	}
}

func TestClassifyBypassScheme(t *testing.T) {
	rt := newTestRuntime(t)

	for _, scheme := range []string{"chrome-extension", "moz-extension", "file"} {
		cls := Classify(rt, ClassifyInput{Method: http.MethodGet, Scheme: scheme, Path: "/index.html"})
		if cls.Class != ClassBypass {
			t.Fatalf("scheme %s must bypass, got %s", scheme, cls.Class)
		}
		if cls.Locator.StoreName != "" {
			t.Fatalf("bypass must not carry a store locator")
		}
	}
}

func TestClassifyPassthroughKeepsQuery(t *testing.T) {
	rt := newTestRuntime(t)

	cls := Classify(rt, ClassifyInput{
		Method:   http.MethodGet,
		Scheme:   "http",
		Path:     "/search",
		RawQuery: []byte("q=weather"),
	})
	if cls.Class != ClassPassthrough {
		t.Fatalf("expected passthrough, got %s", cls.Class)
	}
	if cls.NetworkURL != "http://app.local:3000/search?q=weather" {
		t.Fatalf("unexpected network url: %s", cls.NetworkURL)
	}
}
