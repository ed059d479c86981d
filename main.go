package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/news-shell/news-shell/internal/cache"
	"github.com/news-shell/news-shell/internal/config"
	"github.com/news-shell/news-shell/internal/lifecycle"
	"github.com/news-shell/news-shell/internal/logging"
	"github.com/news-shell/news-shell/internal/proxy"
	"github.com/news-shell/news-shell/internal/server"
	"github.com/news-shell/news-shell/internal/server/routes"
	"github.com/news-shell/news-shell/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["shell_version"] = cfg.Shell.Version
		fields["precache_assets"] = len(cfg.Shell.PrecacheAssets)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	runtime, err := server.NewAppRuntime(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "构建运行时失败: %v\n", err)
		return 1
	}

	// CLI 启动遵循“配置 → 运行时 → 磁盘存储 → 生命周期 → Fiber server”顺序，
	// 保证安装/激活与请求拦截共享同一份存储实例。
	store, err := cache.NewStore(cfg.Global.StoragePath)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	httpClient := server.NewUpstreamClient(cfg)
	handler := proxy.NewHandler(httpClient, logger, store)

	installer := lifecycle.NewInstaller(lifecycle.InstallerOptions{
		Store:       store,
		Client:      httpClient,
		Logger:      logger,
		Manifest:    runtime.Manifest,
		StoreName:   runtime.StaticStoreName,
		Version:     cfg.Shell.Version,
		Concurrency: cfg.Global.InstallConcurrency,
	})
	activator := lifecycle.NewActivator(store, logger, cfg.Shell.AllowedStoreNames(), cfg.Shell.Version)
	controller := lifecycle.NewController(installer, activator, logger, cfg.Shell.Version)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["shell_version"] = cfg.Shell.Version
	fields["listen_port"] = cfg.Global.ListenPort
	fields["precache_assets"] = runtime.Manifest.Len()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	// 安装/激活与监听并行推进：接管前的请求一律透传，等价于页面直连网络。
	go func() {
		if err := controller.Startup(context.Background()); err != nil {
			logger.WithFields(logrus.Fields{
				"action": "lifecycle",
				"error":  err.Error(),
			}).Error("lifecycle_startup_failed")
		}
	}()

	if err := startHTTPServer(cfg, runtime, handler, controller, store, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("news-shell", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 NEWS_SHELL_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("NEWS_SHELL_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(
	cfg *config.Config,
	runtime *server.AppRuntime,
	proxyHandler server.ProxyHandler,
	controller *lifecycle.Controller,
	store cache.Store,
	logger *logrus.Logger,
) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Runtime:    runtime,
		Proxy:      proxyHandler,
		Gate:       controller,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, runtime, store, controller)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
