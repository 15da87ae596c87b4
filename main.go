package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/routerway/routerway/internal/cache"
	"github.com/routerway/routerway/internal/config"
	"github.com/routerway/routerway/internal/dispatch"
	"github.com/routerway/routerway/internal/errpage"
	"github.com/routerway/routerway/internal/logging"
	"github.com/routerway/routerway/internal/proxy"
	"github.com/routerway/routerway/internal/server"
	"github.com/routerway/routerway/internal/server/routes"
	"github.com/routerway/routerway/internal/static"
	"github.com/routerway/routerway/internal/version"
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

const shutdownTimeout = 10 * time.Second

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

	logger, err := logging.InitLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["routes"] = config.RouteSummaries(cfg.API)
		fields["root"] = cfg.Static.RootDirectory
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := buildService(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["port"] = cfg.Server.Port
	fields["root"] = cfg.Static.RootDirectory
	fields["error_pages"] = cfg.Static.ErrorPagesDirectory
	fields["routes"] = config.RouteSummaries(cfg.API)
	fields["cache_enabled"] = cfg.Server.CacheEnabled
	fields["cache_budget"] = humanize.IBytes(uint64(cfg.Server.CacheBudget))
	// max_connections 目前只做记录，不参与任何限流。
	fields["max_connections"] = cfg.Server.MaxConnections
	fields["version"] = version.Full()
	logger.WithFields(fields).Infof("%s 启动中", cfg.Server.Name)

	go svc.cache.RunSweeper(ctx, cfg.Server.CleanupInterval.DurationValue(), cfg.Server.CacheMaxAge.DurationValue())
	go func() {
		<-ctx.Done()
		logger.WithField("action", "shutdown").Info("收到退出信号，正在关闭服务")
		if err := svc.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.WithError(err).WithField("action", "shutdown").Warn("关闭服务超时")
		}
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   cfg.Server.Port,
	}).Info("Fiber 服务启动")

	if err := svc.app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	logger.WithField("action", "shutdown").Info("服务已停止")
	return 0
}

type service struct {
	app   *fiber.App
	cache *cache.FileCache
}

// buildService 按 缓存预热 → 错误页 → 静态处理 → 上游转发 → 路由表 → Fiber 的顺序组装服务，
// 所有请求共享同一个 FileCache 实例。
func buildService(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*service, error) {
	fileCache := cache.New(cache.Options{
		Root:    cfg.Static.RootDirectory,
		MaxSize: cfg.Server.CacheBudget,
		Enabled: cfg.Server.CacheEnabled,
		Logger:  logger,
	})
	if err := fileCache.Initialize(ctx); err != nil {
		return nil, err
	}

	pages := errpage.NewResolver(fileCache, cache.NewDisk(nil, cfg.Static.ErrorPagesDirectory), logger)
	staticHandler := static.NewHandler(fileCache, cache.NewDisk(nil, cfg.Static.RootDirectory), pages, logger)
	forwarder := proxy.NewForwarder(server.NewUpstreamClient(cfg), pages, logger)
	table := dispatch.NewRouteTable(cfg.API)

	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Routes:      table,
		Proxy:       forwarder,
		Static:      staticHandler,
		Diagnostics: cfg.Server.Diagnostics,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Server.Diagnostics {
		routes.RegisterDiagnosticsRoutes(app, fileCache, table)
	}

	return &service{app: app, cache: fileCache}, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("routerway", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ROUTERWAY_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ROUTERWAY_CONFIG")
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
