// Package lifecycle drives the proxy through its startup stages: install
// (precache the shell manifest), activate (drop stale version stores), then
// claim (open the interception gate). The ordering guarantee is strict:
// install completes before activation begins, and activation completes
// before any request is intercepted.
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/news-shell/news-shell/internal/cache"
	"github.com/news-shell/news-shell/internal/logging"
	"github.com/news-shell/news-shell/internal/shell"
)

// Installer 将清单内的全部壳资源抓取进静态存储。单个资源失败只记日志，
// 不影响安装整体成功，也不做重试。
type Installer struct {
	store       cache.Store
	client      *http.Client
	logger      *logrus.Logger
	manifest    *shell.Manifest
	storeName   string
	version     string
	concurrency int
}

// InstallerOptions 汇总构建 Installer 所需的依赖。
type InstallerOptions struct {
	Store       cache.Store
	Client      *http.Client
	Logger      *logrus.Logger
	Manifest    *shell.Manifest
	StoreName   string
	Version     string
	Concurrency int
}

// NewInstaller 构造安装器，Concurrency 小于 1 时退化为串行抓取。
func NewInstaller(opts InstallerOptions) *Installer {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Installer{
		store:       opts.Store,
		client:      opts.Client,
		logger:      opts.Logger,
		manifest:    opts.Manifest,
		storeName:   opts.StoreName,
		version:     opts.Version,
		concurrency: concurrency,
	}
}

// InstallReport 描述一次预缓存的结果。失败条目仅作观测，不影响安装结论。
type InstallReport struct {
	Requested int
	Stored    int
	Failed    []string
}

// Precache 并发抓取清单条目并写入静态存储。仅在上下文取消时返回错误；
// 个别资源不可达会被吞掉并记录在 Report.Failed 中。
func (i *Installer) Precache(ctx context.Context) (*InstallReport, error) {
	assets := i.manifest.Assets()
	report := &InstallReport{Requested: len(assets)}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(i.concurrency)

	for _, asset := range assets {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			if err := i.fetchAndStore(groupCtx, asset); err != nil {
				fields := logging.LifecycleFields("install", i.version)
				fields["asset"] = asset.Raw
				fields["error"] = err.Error()
				i.logger.WithFields(fields).Warn("precache_asset_failed")

				mu.Lock()
				report.Failed = append(report.Failed, asset.Raw)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			report.Stored++
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (i *Installer) fetchAndStore(ctx context.Context, asset shell.Asset) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.FetchURL, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, asset.FetchURL)
	}

	locator := cache.Locator{StoreName: i.storeName, Path: asset.Key}
	if _, err := i.store.Put(ctx, locator, resp.Body, cache.PutOptions{}); err != nil {
		return fmt.Errorf("store %s: %w", asset.Key, err)
	}
	return nil
}
