// Package routes exposes the /-/ diagnostics namespace. These endpoints are
// excluded from classification by design: diagnostics must answer even when
// the upstream is unreachable and must never touch the stores' contents.
package routes

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/news-shell/news-shell/internal/cache"
	"github.com/news-shell/news-shell/internal/lifecycle"
	"github.com/news-shell/news-shell/internal/server"
	"github.com/news-shell/news-shell/internal/strategy"
	"github.com/news-shell/news-shell/internal/version"
)

// Lifecycle 是诊断端需要的生命周期视图。
type Lifecycle interface {
	Stage() lifecycle.Stage
	Claimed() bool
}

// RegisterDiagnosticsRoutes 暴露 /-/health、/-/stores 与 /-/strategies，
// 供运维确认接管状态、版本存储与策略绑定。
func RegisterDiagnosticsRoutes(app *fiber.App, runtime *server.AppRuntime, store cache.Store, lc Lifecycle) {
	if app == nil || runtime == nil {
		return
	}

	app.Get("/-/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version.Full(),
			"shell":   runtime.Config.Version,
			"stage":   string(lc.Stage()),
			"claimed": lc.Claimed(),
		})
	})

	app.Get("/-/stores", func(c fiber.Ctx) error {
		names, err := store.StoreNames(context.Background())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "store_enumeration_failed"})
		}
		return c.JSON(fiber.Map{
			"stores": encodeStores(runtime, names),
		})
	})

	app.Get("/-/strategies", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"strategies": encodeProfiles(strategy.List()),
		})
	})
}

type storePayload struct {
	Name    string `json:"name"`
	Current bool   `json:"current"`
}

type profilePayload struct {
	Key           string `json:"key"`
	Kind          string `json:"kind"`
	Description   string `json:"description"`
	StoresOnFetch bool   `json:"stores_on_fetch"`
	ServesStale   bool   `json:"serves_stale"`
}

func encodeStores(runtime *server.AppRuntime, names []string) []storePayload {
	if len(names) == 0 {
		return nil
	}
	result := make([]storePayload, 0, len(names))
	for _, name := range names {
		result = append(result, storePayload{
			Name:    name,
			Current: name == runtime.StaticStoreName || name == runtime.NewsStoreName,
		})
	}
	return result
}

func encodeProfiles(profiles []strategy.Profile) []profilePayload {
	if len(profiles) == 0 {
		return nil
	}
	result := make([]profilePayload, 0, len(profiles))
	for _, profile := range profiles {
		result = append(result, profilePayload{
			Key:           profile.Key,
			Kind:          string(profile.Kind),
			Description:   profile.Description,
			StoresOnFetch: profile.StoresOnFetch,
			ServesStale:   profile.ServesStale,
		})
	}
	return result
}
