package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/news-shell/news-shell/internal/cache"
	"github.com/news-shell/news-shell/internal/logging"
)

// Activator 在激活阶段枚举全部命名存储，删除不在当前版本白名单内的目录。
// 单个删除失败不会中止剩余清理：失败逐个记录并聚合返回，调用方按告警处理，
// 残留目录留给下一次激活重试。
type Activator struct {
	store   cache.Store
	logger  *logrus.Logger
	allowed map[string]struct{}
	version string
}

// NewActivator 构造激活器，allowedNames 应恰好包含当前版本的两个存储名。
func NewActivator(store cache.Store, logger *logrus.Logger, allowedNames []string, version string) *Activator {
	allowed := make(map[string]struct{}, len(allowedNames))
	for _, name := range allowedNames {
		allowed[name] = struct{}{}
	}
	return &Activator{
		store:   store,
		logger:  logger,
		allowed: allowed,
		version: version,
	}
}

// CleanupReport 描述一次激活清理的结果。
type CleanupReport struct {
	Dropped []string
	Kept    []string
}

// Cleanup 删除所有不在白名单内的存储。返回的 error 是全部删除失败的聚合，
// 非 nil 时 Report 仍然有效。
func (a *Activator) Cleanup(ctx context.Context) (*CleanupReport, error) {
	names, err := a.store.StoreNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate stores: %w", err)
	}

	report := &CleanupReport{}
	var failures []error

	for _, name := range names {
		if _, ok := a.allowed[name]; ok {
			report.Kept = append(report.Kept, name)
			continue
		}

		if err := a.store.DropStore(ctx, name); err != nil {
			fields := logging.LifecycleFields("activate", a.version)
			fields["store"] = name
			fields["error"] = err.Error()
			a.logger.WithFields(fields).Warn("store_drop_failed")
			failures = append(failures, fmt.Errorf("drop %s: %w", name, err))
			continue
		}

		fields := logging.LifecycleFields("activate", a.version)
		fields["store"] = name
		a.logger.WithFields(fields).Info("stale_store_dropped")
		report.Dropped = append(report.Dropped, name)
	}

	return report, errors.Join(failures...)
}
