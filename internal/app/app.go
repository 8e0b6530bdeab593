// Package app 按配置组装规划服务及其依赖，供各入口程序共用
package app

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/caidan/caidan/internal/cache"
	"github.com/caidan/caidan/internal/catalog"
	"github.com/caidan/caidan/internal/config"
	"github.com/caidan/caidan/internal/database"
	"github.com/caidan/caidan/internal/handler"
	"github.com/caidan/caidan/internal/metrics"
	"github.com/caidan/caidan/internal/planning"
	"github.com/caidan/caidan/internal/queue"
	"github.com/caidan/caidan/internal/repository"
	"github.com/caidan/caidan/pkg/logger"
	"github.com/caidan/caidan/pkg/planner/darwin"
)

// App 已连接的外部依赖与规划服务
type App struct {
	Config  *config.Config
	Service *planning.Service

	db    *database.DB
	redis *redis.Client
	conn  *amqp.Connection

	closers []func() error
}

// New 连接已配置的依赖并创建规划服务，publish 为 true 时创建任务发布者
func New(ctx context.Context, cfg *config.Config, publish bool) (*App, error) {
	a := &App{Config: cfg}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}

	cat, err := a.loadCatalog(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	metrics.SetCatalogSize(cat.Len())

	opts, err := a.serviceOptions(publish)
	if err != nil {
		a.Close()
		return nil, err
	}
	svc, err := planning.NewService(cat, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc

	logger.Info().
		Int("recipes", cat.Len()).
		Bool("database", a.db != nil).
		Bool("redis", a.redis != nil).
		Bool("amqp", a.conn != nil).
		Msg("规划服务已就绪")
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config
	if cfg.Database.Enabled() {
		db, err := database.New(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		a.redis = client
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("连接Redis失败: %w", err)
		}
	}

	if cfg.AMQP.Enabled() {
		conn, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			return fmt.Errorf("连接消息队列失败: %w", err)
		}
		a.conn = conn
		a.closers = append(a.closers, conn.Close)
	}
	return nil
}

// loadCatalog 优先读取目录文件，否则从数据库加载
func (a *App) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if path := a.Config.Planner.CatalogFile; path != "" {
		return catalog.LoadFile(path)
	}
	if a.db == nil {
		return nil, fmt.Errorf("未配置食谱来源: 需要 PLANNER_CATALOG_FILE 或 DB_HOST")
	}
	return catalog.FromRepository(ctx, repository.NewRecipeRepository(a.db))
}

func (a *App) serviceOptions(publish bool) ([]planning.Option, error) {
	cfg := a.Config
	darwinCfg := darwin.DefaultConfig()
	if cfg.Planner.DarwinFile != "" {
		loaded, err := darwin.LoadFile(cfg.Planner.DarwinFile)
		if err != nil {
			return nil, err
		}
		darwinCfg = loaded
	}

	opts := []planning.Option{
		planning.WithDarwinConfig(darwinCfg),
		planning.WithDefaultTimeout(cfg.Planner.DefaultTimeout),
		planning.WithWorkers(cfg.Planner.Workers),
		planning.WithProfileDir(cfg.Planner.ProfileDir),
	}
	if a.redis != nil {
		opts = append(opts, planning.WithStore(cache.NewRedisStore(a.redis, cfg.Redis.ResultTTL)))
	}
	if a.db != nil {
		opts = append(opts, planning.WithRecorder(repository.NewPlanRunRepository(a.db)))
	}
	if publish && a.conn != nil {
		ch, err := a.Channel()
		if err != nil {
			return nil, err
		}
		pub, err := queue.NewPublisher(ch, cfg.AMQP.Queue, cfg.AMQP.PublishTimeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, planning.WithPublisher(pub))
	}
	return opts, nil
}

// Channel 打开新的消息队列通道，随 App 一起关闭
func (a *App) Channel() (*amqp.Channel, error) {
	if a.conn == nil {
		return nil, fmt.Errorf("未配置消息队列 AMQP_URL")
	}
	ch, err := a.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("打开消息队列通道失败: %w", err)
	}
	a.closers = append(a.closers, ch.Close)
	return ch, nil
}

// HandlerOptions 依赖相关的处理器选项：健康检查与任务列表
func (a *App) HandlerOptions() []handler.Option {
	var opts []handler.Option
	if a.db != nil {
		opts = append(opts,
			handler.WithHealthCheck("database", a.db.Health),
			handler.WithRunLister(repository.NewPlanRunRepository(a.db)),
		)
	}
	if a.redis != nil {
		client := a.redis
		opts = append(opts, handler.WithHealthCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}
	if a.conn != nil {
		conn := a.conn
		opts = append(opts, handler.WithHealthCheck("amqp", func(context.Context) error {
			if conn.IsClosed() {
				return fmt.Errorf("连接已关闭")
			}
			return nil
		}))
	}
	return opts
}

// Close 按创建的逆序关闭依赖
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn().Err(err).Msg("关闭依赖失败")
		}
	}
	a.closers = nil
}
