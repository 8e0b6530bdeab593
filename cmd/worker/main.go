// CaiDan 异步规划任务消费者

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/caidan/caidan/internal/app"
	"github.com/caidan/caidan/internal/config"
	"github.com/caidan/caidan/internal/queue"
	"github.com/caidan/caidan/pkg/logger"
)

func main() {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化失败")
	}
	defer a.Close()

	ch, err := a.Channel()
	if err != nil {
		logger.Fatal().Err(err).Msg("打开消息队列失败")
	}
	consumer, err := queue.NewConsumer(ch, cfg.AMQP.Queue, cfg.Planner.Workers)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建消费者失败")
	}

	logger.Info().
		Str("queue", cfg.AMQP.Queue).
		Int("workers", cfg.Planner.Workers).
		Msg("开始消费规划任务")
	if err := consumer.Run(ctx, a.Service.HandleJob); err != nil {
		logger.Error().Err(err).Msg("消费任务失败")
		return
	}
	logger.Info().Msg("消费者已退出")
}
