// Package config 提供配置管理
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	Log      LogConfig      `envPrefix:"LOG_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	AMQP     AMQPConfig     `envPrefix:"AMQP_"`
	API      APIConfig      `envPrefix:"API_"`
	Planner  PlannerConfig  `envPrefix:"PLANNER_"`
	Metrics  MetricsConfig  `envPrefix:"METRICS_"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name            string        `env:"NAME" envDefault:"caidan"`
	Env             string        `env:"ENV" envDefault:"development"`
	Port            int           `env:"PORT" envDefault:"7012"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Pretty bool   `env:"PRETTY" envDefault:"false"`
}

// DatabaseConfig 数据库配置，Host 为空时不连接数据库，食谱从 CatalogFile 读取
type DatabaseConfig struct {
	Host            string        `env:"HOST"`
	Port            int           `env:"PORT" envDefault:"5432"`
	Name            string        `env:"NAME" envDefault:"caidan"`
	User            string        `env:"USER" envDefault:"caidan"`
	Password        string        `env:"PASSWORD"`
	SSLMode         string        `env:"SSL_MODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
}

// Enabled 是否配置了数据库
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host      string        `env:"HOST"`
	Port      int           `env:"PORT" envDefault:"6379"`
	Password  string        `env:"PASSWORD"`
	DB        int           `env:"DB" envDefault:"0"`
	PoolSize  int           `env:"POOL_SIZE" envDefault:"10"`
	ResultTTL time.Duration `env:"RESULT_TTL" envDefault:"24h"`
}

// Enabled 是否配置了 Redis
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AMQPConfig 异步求解队列配置
type AMQPConfig struct {
	URL            string        `env:"URL"`
	Queue          string        `env:"QUEUE" envDefault:"caidan.plans"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"10s"`
	Prefetch       int           `env:"PREFETCH" envDefault:"4"`
}

// Enabled 是否配置了消息队列
func (c *AMQPConfig) Enabled() bool {
	return c.URL != ""
}

// APIConfig API配置
type APIConfig struct {
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"60s"`
	MaxBodySize int64         `env:"MAX_BODY_SIZE" envDefault:"4194304"`
}

// PlannerConfig 规划引擎配置
type PlannerConfig struct {
	CatalogFile    string        `env:"CATALOG_FILE"`
	DarwinFile     string        `env:"DARWIN_FILE"` // 遗传算法 YAML 配置，为空时使用默认值
	DefaultTimeout time.Duration `env:"DEFAULT_TIMEOUT" envDefault:"30s"`
	Workers        int           `env:"WORKERS" envDefault:"4"`
	ProfileDir     string        `env:"PROFILE_DIR"` // 非空时为每次求解写入性能记录
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}
	if cfg.Planner.Workers <= 0 {
		return nil, fmt.Errorf("PLANNER_WORKERS 必须大于0")
	}
	return cfg, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
