// CaiDan 菜单规划服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/caidan/caidan/internal/app"
	"github.com/caidan/caidan/internal/config"
	"github.com/caidan/caidan/internal/handler"
	"github.com/caidan/caidan/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	format := "json"
	if cfg.Log.Pretty {
		format = "console"
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: format, Output: "stdout", TimeFormat: time.RFC3339})

	fmt.Printf("CaiDan 菜单规划 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化失败")
	}
	defer a.Close()

	opts := []handler.Option{
		handler.WithTimeout(cfg.API.Timeout),
		handler.WithMaxBodySize(cfg.API.MaxBodySize),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, handler.WithMetrics(cfg.Metrics.Path))
	}
	opts = append(opts, a.HandlerOptions()...)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler.New(a.Service, opts...).Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return
	}
	logger.Info().Msg("服务器已关闭")
}
