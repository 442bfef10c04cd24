package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"

	"resume-rag-go/internal/api/handler"
	"resume-rag-go/internal/api/router"
	"resume-rag-go/internal/config"
	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/singleton"
	"resume-rag-go/internal/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		glog.Fatalf("初始化链路追踪失败: %v", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := shutdownTracer(shutdownCtx); err != nil {
			glog.Warnf("链路追踪关闭失败: %v", err)
		}
	}()

	// 首次创建Pinecone客户端会确保索引存在，可能耗时较长
	initCtx, cancelInit := context.WithTimeout(ctx, 2*time.Minute)
	defer cancelInit()

	analyzer, err := singleton.GetResumeAnalyzer(initCtx, cfg)
	if err != nil {
		glog.Fatalf("初始化简历分析器失败: %v", err)
	}
	glog.Info("简历分析器初始化成功")

	vectorStore, err := singleton.GetResumeVectorStore(initCtx, cfg)
	if err != nil {
		glog.Fatalf("初始化向量存储失败: %v", err)
	}
	glog.Info("向量存储初始化成功")

	extractor, err := parser.NewTextExtractor(ctx)
	if err != nil {
		glog.Fatalf("初始化文本提取器失败: %v", err)
	}
	glog.Info("文本提取器初始化成功")

	resumeHandler := handler.NewResumeHandler(cfg, analyzer, extractor, vectorStore)

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, resumeHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	// Hertz 的 hlog 走同一个 zerolog 实例
	glog.SetLogger(hertzadapter.From(logger.Logger))
}
