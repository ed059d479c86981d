package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/news-shell/news-shell/internal/logging"
)

// Stage 描述控制器当前所处的生命周期阶段。
type Stage string

const (
	StageIdle       Stage = "idle"
	StageInstalling Stage = "installing"
	StageInstalled  Stage = "installed"
	StageActivating Stage = "activating"
	StageActive     Stage = "active"
)

// Controller 按固定顺序驱动 install → activate → claim。claim 之后拦截门打开，
// 已建立连接上的后续请求同样进入策略处理（对应对已打开页面的接管）。
type Controller struct {
	installer *Installer
	activator *Activator
	logger    *logrus.Logger
	version   string

	mu      sync.RWMutex
	stage   Stage
	claimed atomic.Bool
}

// NewController 构造生命周期控制器。
func NewController(installer *Installer, activator *Activator, logger *logrus.Logger, version string) *Controller {
	return &Controller{
		installer: installer,
		activator: activator,
		logger:    logger,
		version:   version,
		stage:     StageIdle,
	}
}

// Startup 执行完整启动序列。安装阶段容忍个别资源失败；激活清理的聚合失败
// 降级为告警，不阻止接管。返回错误仅代表启动被取消或存储枚举不可用。
func (c *Controller) Startup(ctx context.Context) error {
	c.setStage(StageInstalling)
	report, err := c.installer.Precache(ctx)
	if err != nil {
		return err
	}

	fields := logging.LifecycleFields("install", c.version)
	fields["requested"] = report.Requested
	fields["stored"] = report.Stored
	fields["failed"] = len(report.Failed)
	c.logger.WithFields(fields).Info("install_complete")
	c.setStage(StageInstalled)

	// skip-waiting 语义：安装结束立即进入激活，不等待任何旧实例退出。
	c.setStage(StageActivating)
	cleanup, cleanupErr := c.activator.Cleanup(ctx)
	if cleanupErr != nil {
		if cleanup == nil {
			return cleanupErr
		}
		fields := logging.LifecycleFields("activate", c.version)
		fields["error"] = cleanupErr.Error()
		c.logger.WithFields(fields).Warn("activation_cleanup_partial")
	}

	if cleanup != nil {
		fields := logging.LifecycleFields("activate", c.version)
		fields["dropped"] = len(cleanup.Dropped)
		fields["kept"] = len(cleanup.Kept)
		c.logger.WithFields(fields).Info("activation_complete")
	}

	c.claimed.Store(true)
	c.setStage(StageActive)
	c.logger.WithFields(logging.LifecycleFields("claim", c.version)).Info("clients_claimed")
	return nil
}

// Stage 返回当前阶段，供诊断端输出。
func (c *Controller) Stage() Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stage
}

// Claimed 返回拦截门是否已经打开。未接管前请求一律透传。
func (c *Controller) Claimed() bool {
	return c.claimed.Load()
}

func (c *Controller) setStage(stage Stage) {
	c.mu.Lock()
	c.stage = stage
	c.mu.Unlock()
}
