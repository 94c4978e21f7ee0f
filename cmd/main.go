package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messenger/internal/config"
	"messenger/internal/logger"
	"messenger/internal/router"
	"messenger/internal/server"
	"messenger/internal/service"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// 读取配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建统一服务管理器
	serviceMgr, err := service.NewManager(context.Background(), cfg, log)
	if err != nil {
		log.Fatalw("初始化服务失败", "error", err)
	}

	r := router.SetupRouter(serviceMgr.Handlers(), cfg.Server.AllowOrigins, log)

	// 验证证书（如果启用TLS），失败时回退到HTTP
	tlsConfig := server.NewTLSConfig(cfg.Server.CertFile, cfg.Server.KeyFile, cfg.Server.TLS)
	if err := tlsConfig.ValidateCertificates(); err != nil {
		log.Warnw("TLS证书验证失败，回退到HTTP模式", "error", err)
		tlsConfig = server.NewTLSConfig("", "", false)
	}

	httpServer := server.NewHTTPServer(r, cfg.Server.Port, tlsConfig)
	serveErr := server.Serve(httpServer, tlsConfig, log)

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Infow("收到退出信号", "signal", sig.String())
	case err := <-serveErr:
		log.Errorw("服务器启动失败", "error", err)
	}

	log.Info("正在关闭服务器...")

	// 先停止接收请求，再关闭内部组件
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorw("HTTP 服务器关闭失败", "error", err)
	}

	serviceMgr.Shutdown()
	log.Info("服务器已安全关闭")
}
