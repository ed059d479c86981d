package integration

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/news-shell/news-shell/internal/cache"
	"github.com/news-shell/news-shell/internal/config"
	"github.com/news-shell/news-shell/internal/lifecycle"
	"github.com/news-shell/news-shell/internal/proxy"
	"github.com/news-shell/news-shell/internal/server"
)

// newsStub 模拟壳资源与新闻 API 共用的上游源站，按路径统计命中次数。
type newsStub struct {
	*httptest.Server
	mu       sync.Mutex
	hits     map[string]int
	newsBody []byte
}

func newNewsStub(t *testing.T) *newsStub {
	t.Helper()
	stub := &newsStub{
		hits:     map[string]int{},
		newsBody: []byte(`{"items":["headline-1","headline-2"]}`),
	}
	stub.Server = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.Close)
	return stub
}

func (s *newsStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.Method+" "+r.URL.Path]++
	body := s.newsBody
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/broken.css" || r.URL.Path == "/api/news/missing":
		w.WriteHeader(http.StatusNotFound)
	case strings.HasPrefix(r.URL.Path, "/api/news"):
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		_, _ = w.Write(body)
	default:
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("asset:" + r.URL.Path))
	}
}

func (s *newsStub) hitCount(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func (s *newsStub) updateNewsBody(body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newsBody = body
}

// openGate 在测试中扮演已接管的生命周期门。
type openGate bool

func (g openGate) Claimed() bool {
	return bool(g)
}

// shellEnv 聚合一套可发请求的完整拦截环境。
type shellEnv struct {
	app     *fiber.App
	cfg     *config.Config
	runtime *server.AppRuntime
	store   cache.Store
	client  *http.Client
	logger  *logrus.Logger
}

func newShellEnv(t *testing.T, upstreamURL string, claimed bool, assets ...string) *shellEnv {
	t.Helper()

	if len(assets) == 0 {
		assets = []string{"/", "/index.html", "/css/style.css"}
	}

	cfg := &config.Config{
		Global: config.GlobalConfig{
			ListenPort:         5000,
			StoragePath:        t.TempDir(),
			UpstreamTimeout:    config.Duration(5 * time.Second),
			InstallConcurrency: 2,
		},
		Shell: config.ShellConfig{
			Version:        "v1",
			Upstream:       upstreamURL,
			APIPrefix:      "/api/news",
			PrecacheAssets: assets,
		},
	}

	runtime, err := server.NewAppRuntime(cfg)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}

	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client := server.NewUpstreamClient(cfg)
	handler := proxy.NewHandler(client, logger, store)

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Runtime:    runtime,
		Proxy:      handler,
		Gate:       openGate(claimed),
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}

	return &shellEnv{
		app:     app,
		cfg:     cfg,
		runtime: runtime,
		store:   store,
		client:  client,
		logger:  logger,
	}
}

func (e *shellEnv) newInstaller() *lifecycle.Installer {
	return lifecycle.NewInstaller(lifecycle.InstallerOptions{
		Store:       e.store,
		Client:      e.client,
		Logger:      e.logger,
		Manifest:    e.runtime.Manifest,
		StoreName:   e.runtime.StaticStoreName,
		Version:     e.cfg.Shell.Version,
		Concurrency: e.cfg.Global.InstallConcurrency,
	})
}

func (e *shellEnv) do(t *testing.T, method, target string) *http.Response {
	t.Helper()
	resp, err := e.app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	return resp
}
