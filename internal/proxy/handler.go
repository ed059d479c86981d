package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/news-shell/news-shell/internal/cache"
	"github.com/news-shell/news-shell/internal/logging"
	"github.com/news-shell/news-shell/internal/server"
)

// 缓存结果标记，写入 X-News-Shell-Cache 响应头。
const (
	cacheResultHit      = "hit"
	cacheResultMiss     = "miss"
	cacheResultFallback = "fallback"
	cacheResultBypass   = "bypass"
)

// Handler 负责 orchestrate “分类 → 策略执行 → 回源/回放” 的全流程，
// 对外暴露 Fiber handler，内部复用共享 http.Client 与磁盘存储。
type Handler struct {
	client *http.Client
	logger *logrus.Logger
	store  cache.Store
}

// NewHandler constructs the strategy handler with shared HTTP client/logger/store.
func NewHandler(client *http.Client, logger *logrus.Logger, store cache.Store) *Handler {
	return &Handler{
		client: client,
		logger: logger,
		store:  store,
	}
}

// Handle 执行分类与对应策略，任何阶段出错都会输出结构化日志。
func (h *Handler) Handle(c fiber.Ctx, rt *server.AppRuntime) error {
	started := time.Now()
	requestID := server.RequestID(c)
	cls := Classify(rt, classifyInput(c))

	switch cls.Class {
	case ClassBypass:
		return h.rejectBypass(c, requestID)
	case ClassShellAsset:
		return h.serveCacheFirst(c, cls, requestID, started)
	case ClassNewsAPI:
		return h.serveNetworkFirst(c, cls, requestID, started)
	default:
		return h.forward(c, cls, requestID, started)
	}
}

// Passthrough 实现 server.ProxyHandler 的未接管分支：不经分类直接转发。
func (h *Handler) Passthrough(c fiber.Ctx, rt *server.AppRuntime) error {
	started := time.Now()
	requestID := server.RequestID(c)
	cls := Classification{
		Class:      ClassPassthrough,
		NetworkURL: resolveUpstream(rt, requestPath(c), rawQuery(c)),
	}
	return h.forward(c, cls, requestID, started)
}

// rejectBypass 处理非 http(s) scheme 的请求：不碰任何存储，直接拒绝。
func (h *Handler) rejectBypass(c fiber.Ctx, requestID string) error {
	fields := logging.RequestFields(string(ClassBypass), "", cacheResultBypass, requestPath(c))
	fields["action"] = "intercept"
	if requestID != "" {
		fields["request_id"] = requestID
	}
	h.logger.WithFields(fields).Debug("scheme_bypassed")
	return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "scheme_unsupported"})
}

// serveCacheFirst 执行壳资源策略：命中直接回放；未命中回源但不写缓存；
// 两者皆失败时记录错误并返回网关失败。
func (h *Handler) serveCacheFirst(c fiber.Ctx, cls Classification, requestID string, started time.Time) error {
	ctx := requestContext(c)

	cached, err := h.store.Get(ctx, cls.Locator)
	switch {
	case err == nil:
		return h.serveCached(c, cls, cached, requestID, started)
	case errors.Is(err, cache.ErrNotFound):
		// miss, fall through to network
	default:
		h.logger.WithError(err).
			WithFields(logrus.Fields{"store": cls.Locator.StoreName, "path": cls.Locator.Path}).
			Warn("cache_get_failed")
	}

	resp, err := h.executeRequest(c, cls.NetworkURL, http.MethodGet, http.NoBody)
	if err != nil {
		h.logResult(cls, requestID, 0, cacheResultMiss, started, err)
		return h.writeError(c, fiber.StatusBadGateway, "shell_asset_unavailable")
	}
	defer resp.Body.Close()

	// 未命中回源的结果只返回不落盘，预缓存清单是静态存储的唯一写入来源。
	return h.streamResponse(c, cls, resp, requestID, cacheResultMiss, started)
}

// serveNetworkFirst 执行新闻 API 策略：优先回源，状态 OK 时写穿缓存；
// 回源失败回退到历史缓存，缓存也没有则宣告失败。
func (h *Handler) serveNetworkFirst(c fiber.Ctx, cls Classification, requestID string, started time.Time) error {
	ctx := requestContext(c)

	resp, err := h.executeRequest(c, cls.NetworkURL, http.MethodGet, http.NoBody)
	if err != nil {
		cached, getErr := h.store.Get(ctx, cls.Locator)
		if getErr != nil {
			if !errors.Is(getErr, cache.ErrNotFound) {
				h.logger.WithError(getErr).
					WithFields(logrus.Fields{"store": cls.Locator.StoreName, "path": cls.Locator.Path}).
					Warn("cache_get_failed")
			}
			h.logResult(cls, requestID, 0, cacheResultMiss, started, err)
			return h.writeError(c, fiber.StatusBadGateway, "offline_unavailable")
		}
		return h.serveCached(c, cls, cached, requestID, started)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || c.Method() != http.MethodGet {
		return h.streamResponse(c, cls, resp, requestID, cacheResultMiss, started)
	}
	return h.storeAndStream(c, cls, resp, requestID, started, ctx)
}

// forward 透传默认类请求：保留方法与正文，无任何存储副作用。
func (h *Handler) forward(c fiber.Ctx, cls Classification, requestID string, started time.Time) error {
	resp, err := h.executeRequest(c, cls.NetworkURL, c.Method(), bytesReader(c.Body()))
	if err != nil {
		h.logResult(cls, requestID, 0, cacheResultBypass, started, err)
		return h.writeError(c, fiber.StatusBadGateway, "upstream_failed")
	}
	defer resp.Body.Close()

	return h.streamResponse(c, cls, resp, requestID, cacheResultBypass, started)
}

// serveCached 将存储条目流式回放给客户端。
func (h *Handler) serveCached(
	c fiber.Ctx,
	cls Classification,
	result *cache.ReadResult,
	requestID string,
	started time.Time,
) error {
	cacheResult := cacheResultHit
	if cls.Class == ClassNewsAPI {
		cacheResult = cacheResultFallback
	}

	contentType := inferContentType(cls, result.Entry.Locator.Path)
	if contentType != "" {
		c.Set("Content-Type", contentType)
	} else {
		c.Response().Header.Del("Content-Type")
	}

	if length := result.Entry.SizeBytes; length > 0 {
		c.Response().Header.SetContentLength(int(length))
	} else {
		c.Response().Header.Del("Content-Length")
	}

	h.setMarkerHeaders(c, cls, cacheResult, requestID)
	c.Status(fiber.StatusOK)

	if c.Method() == http.MethodHead {
		result.Reader.Close()
		h.logResult(cls, requestID, fiber.StatusOK, cacheResult, started, nil)
		return nil
	}

	_, err := io.Copy(c.Response().BodyWriter(), result.Reader)
	result.Reader.Close()
	h.logResult(cls, requestID, fiber.StatusOK, cacheResult, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("read cache failed: %v", err))
	}
	return nil
}

// streamResponse 将上游响应原样转发，不落盘。
func (h *Handler) streamResponse(
	c fiber.Ctx,
	cls Classification,
	resp *http.Response,
	requestID string,
	cacheResult string,
	started time.Time,
) error {
	copyResponseHeaders(c, resp.Header)
	h.setMarkerHeaders(c, cls, cacheResult, requestID)
	c.Status(resp.StatusCode)

	if c.Method() == http.MethodHead {
		h.logResult(cls, requestID, resp.StatusCode, cacheResult, started, nil)
		return nil
	}

	_, err := io.Copy(c.Response().BodyWriter(), resp.Body)
	h.logResult(cls, requestID, resp.StatusCode, cacheResult, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("proxy stream failed: %v", err))
	}
	return nil
}

// storeAndStream 一边转发一边把响应副本写进新闻存储（写穿）。
func (h *Handler) storeAndStream(
	c fiber.Ctx,
	cls Classification,
	resp *http.Response,
	requestID string,
	started time.Time,
	ctx context.Context,
) error {
	copyResponseHeaders(c, resp.Header)
	h.setMarkerHeaders(c, cls, cacheResultMiss, requestID)
	c.Status(resp.StatusCode)

	reader := io.TeeReader(resp.Body, c.Response().BodyWriter())
	opts := cache.PutOptions{ModTime: extractModTime(resp.Header)}
	_, err := h.store.Put(ctx, cls.Locator, reader, opts)
	h.logResult(cls, requestID, resp.StatusCode, cacheResultMiss, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("cache_write_failed: %v", err))
	}
	return nil
}

func (h *Handler) executeRequest(c fiber.Ctx, targetURL, method string, body io.Reader) (*http.Response, error) {
	req, err := h.buildUpstreamRequest(c, targetURL, method, body)
	if err != nil {
		return nil, err
	}
	return h.client.Do(req)
}

func (h *Handler) buildUpstreamRequest(c fiber.Ctx, targetURL, method string, body io.Reader) (*http.Request, error) {
	ctx := requestContext(c)
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		return nil, err
	}

	requestHeaders := fiberHeadersAsHTTP(c)
	server.CopyHeaders(req.Header, requestHeaders)
	req.Header.Del("Accept-Encoding")
	req.Host = req.URL.Host
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			req.Header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			req.Header.Set("X-Forwarded-For", ip)
		}
	}
	req.Header.Set("X-Forwarded-Proto", c.Protocol())

	return req, nil
}

func (h *Handler) setMarkerHeaders(c fiber.Ctx, cls Classification, cacheResult, requestID string) {
	if cls.NetworkURL != "" {
		c.Set("X-News-Shell-Upstream", cls.NetworkURL)
	}
	c.Set("X-News-Shell-Cache", cacheResult)
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	cls Classification,
	requestID string,
	status int,
	cacheResult string,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(string(cls.Class), cls.StrategyKey, cacheResult, cls.Locator.Path)
	fields["action"] = "intercept"
	fields["upstream"] = cls.NetworkURL
	fields["upstream_status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("intercept_failed")
		return
	}
	h.logger.WithFields(fields).Info("intercept_complete")
}

// inferContentType 根据存储键推断回放时的 Content-Type；新闻条目固定按
// JSON 处理，壳资源按扩展名推断，根路径回退到 HTML。
func inferContentType(cls Classification, entryPath string) string {
	if cls.Class == ClassNewsAPI {
		return "application/json"
	}

	clean := stripQueryMarker(entryPath)
	ext := path.Ext(clean)
	if ext == "" {
		return "text/html; charset=utf-8"
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return ""
}

func stripQueryMarker(p string) string {
	if idx := strings.Index(p, "/__qs/"); idx >= 0 {
		return p[:idx]
	}
	return p
}

func classifyInput(c fiber.Ctx) ClassifyInput {
	uri := c.Request().URI()
	return ClassifyInput{
		Method:   c.Method(),
		Scheme:   string(uri.Scheme()),
		Host:     string(uri.Host()),
		Path:     string(uri.Path()),
		RawQuery: append([]byte(nil), uri.QueryString()...),
	}
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func requestPath(c fiber.Ctx) string {
	if c == nil {
		return "/"
	}
	uri := c.Request().URI()
	if uri == nil {
		return "/"
	}
	pathVal := string(uri.Path())
	if pathVal == "" {
		return "/"
	}
	return pathVal
}

func rawQuery(c fiber.Ctx) []byte {
	return append([]byte(nil), c.Request().URI().QueryString()...)
}

func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return http.NoBody
	}
	return bytes.NewReader(b)
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if server.IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func extractModTime(header http.Header) time.Time {
	if last := header.Get("Last-Modified"); last != "" {
		if parsed, err := http.ParseTime(last); err == nil {
			return parsed.UTC()
		}
	}
	return time.Now().UTC()
}
