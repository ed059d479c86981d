package shell

import (
	"net/url"
	"testing"
)

func newTestManifest(t *testing.T, entries []string) *Manifest {
	t.Helper()
	upstream, err := url.Parse("http://app.local:3000")
	if err != nil {
		t.Fatalf("parse upstream: %v", err)
	}
	manifest, err := NewManifest(upstream, entries)
	if err != nil {
		t.Fatalf("manifest error: %v", err)
	}
	return manifest
}

func TestManifestMatchPath(t *testing.T) {
	manifest := newTestManifest(t, []string{"/", "/index.html", "css/style.css", "/js/app.js"})

	cases := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"", true},
		{"/index.html", true},
		{"index.html", true},
		{"/css/style.css", true},
		{"/js/app.js", true},
		{"/js/app.js.map", false},
		{"/api/news/top", false},
		// 子串包含清单条目不等于命中，必须整路径相等。
		{"/vendor/index.html.bak", false},
		{"/prefix/css/style.css", false},
	}

	for _, tc := range cases {
		if _, got := manifest.MatchPath(tc.path); got != tc.want {
			t.Fatalf("MatchPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestManifestRootAlwaysMatches(t *testing.T) {
	manifest := newTestManifest(t, []string{"/"})
	asset, ok := manifest.MatchPath("/")
	if !ok || asset.Key != "/" {
		t.Fatalf("expected root match, got key=%q ok=%v", asset.Key, ok)
	}
}

func TestManifestExternalEntries(t *testing.T) {
	manifest := newTestManifest(t, []string{
		"/",
		"https://cdn.example.com/fonts/inter.woff2",
	})

	asset, ok := manifest.MatchExternal("cdn.example.com", "/fonts/inter.woff2")
	if !ok {
		t.Fatalf("expected external match")
	}
	if asset.Key != "/__ext/cdn.example.com/fonts/inter.woff2" {
		t.Fatalf("unexpected external key: %s", asset.Key)
	}
	if asset.FetchURL != "https://cdn.example.com/fonts/inter.woff2" {
		t.Fatalf("unexpected external fetch url: %s", asset.FetchURL)
	}

	if _, ok := manifest.MatchExternal("cdn.example.com", "/fonts/other.woff2"); ok {
		t.Fatalf("unexpected match for unlisted external path")
	}
	if _, ok := manifest.MatchPath("/fonts/inter.woff2"); ok {
		t.Fatalf("external entry must not match by bare path")
	}
}

func TestManifestFetchURLs(t *testing.T) {
	manifest := newTestManifest(t, []string{"/", "/app.js", "https://cdn.example.com/lib.js"})

	assets := manifest.Assets()
	if len(assets) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(assets))
	}
	if assets[0].FetchURL != "http://app.local:3000/" {
		t.Fatalf("unexpected root fetch url: %s", assets[0].FetchURL)
	}
	if assets[1].FetchURL != "http://app.local:3000/app.js" {
		t.Fatalf("unexpected fetch url: %s", assets[1].FetchURL)
	}
	if !assets[2].External || assets[2].FetchURL != "https://cdn.example.com/lib.js" {
		t.Fatalf("unexpected external asset: %+v", assets[2])
	}
}

func TestManifestRejectsBadScheme(t *testing.T) {
	upstream, _ := url.Parse("http://app.local")
	if _, err := NewManifest(upstream, []string{"ftp://mirror.example.com/file"}); err == nil {
		t.Fatalf("expected error for non-http scheme")
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                "/",
		"/":               "/",
		"index.html":      "/index.html",
		"/index.html":     "/index.html",
		"//a/../b":        "/b",
		"/css//style.css": "/css/style.css",
		"./offline.html":  "/offline.html",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Fatalf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
