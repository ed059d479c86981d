package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProxyHandler describes the component responsible for intercepting requests
// and applying the per-class retrieval strategy. It allows injecting fake
// handlers during tests.
type ProxyHandler interface {
	Handle(fiber.Ctx, *AppRuntime) error
	// Passthrough forwards the request with no storage side effects; the
	// router uses it while the lifecycle gate is still closed.
	Passthrough(fiber.Ctx, *AppRuntime) error
}

// Gate 暴露生命周期接管状态。门未打开时所有请求直接透传。
type Gate interface {
	Claimed() bool
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Runtime    *AppRuntime
	Proxy      ProxyHandler
	Gate       Gate
	ListenPort int
}

const contextKeyRequestID = "_newsshell_request_id"

// NewApp builds a Fiber application with the lifecycle gate middleware and
// structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Runtime == nil {
		return nil, errors.New("app runtime is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("lifecycle gate is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		// 未接管前请求不进入任何策略，等价于平台默认处理。
		if !opts.Gate.Claimed() {
			return opts.Proxy.Passthrough(c, opts.Runtime)
		}
		return opts.Proxy.Handle(c, opts.Runtime)
	})

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID 并写回响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
