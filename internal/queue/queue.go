// Package queue 通过 RabbitMQ 分发异步规划任务
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sourcegraph/conc/pool"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/logger"
)

// Job 一个异步规划任务
type Job struct {
	RunID      string          `json:"run_id"`
	Request    json.RawMessage `json:"request"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Channel amqp.Channel 中用到的方法
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// declare 声明持久化队列
func declare(ch Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // 队列名称
		true,  // 持久化
		false, // 没有消费者时不自动删除
		false, // 允许多个消费者
		false, // 等待服务端确认
		nil,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeQueueFailed, "声明队列失败").WithField("queue", name)
	}
	return nil
}

// Publisher 任务发布者
type Publisher struct {
	ch      Channel
	queue   string
	timeout time.Duration
}

// NewPublisher 创建发布者并声明队列
func NewPublisher(ch Channel, queue string, timeout time.Duration) (*Publisher, error) {
	if err := declare(ch, queue); err != nil {
		return nil, err
	}
	return &Publisher{ch: ch, queue: queue, timeout: timeout}, nil
}

// Publish 发布持久化任务
func (p *Publisher) Publish(ctx context.Context, job *Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.RunID,
		Timestamp:    job.EnqueuedAt,
		Body:         body,
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeQueueFailed, "发布任务失败").WithField("run_id", job.RunID)
	}
	return nil
}

// Close 关闭通道
func (p *Publisher) Close() error { return p.ch.Close() }

// Handler 处理一个任务，返回错误时消息被拒绝且不重新入队
type Handler func(ctx context.Context, job *Job) error

// Consumer 任务消费者，手动确认
type Consumer struct {
	ch      Channel
	queue   string
	workers int
}

// NewConsumer 创建消费者，workers 为并发处理的任务数
func NewConsumer(ch Channel, queue string, workers int) (*Consumer, error) {
	if workers <= 0 {
		workers = 1
	}
	if err := declare(ch, queue); err != nil {
		return nil, err
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		return nil, errors.Wrap(err, errors.CodeQueueFailed, "设置预取数量失败")
	}
	return &Consumer{ch: ch, queue: queue, workers: workers}, nil
}

// Run 消费任务直到 ctx 结束或投递通道关闭，返回前等待进行中的任务完成
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeQueueFailed, "订阅队列失败").WithField("queue", c.queue)
	}

	p := pool.New().WithMaxGoroutines(c.workers)
	defer p.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			p.Go(func() { c.process(ctx, d, handle) })
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery, handle Handler) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		logger.Error().Err(err).Str("message_id", d.MessageId).Msg("任务反序列化失败")
		_ = d.Nack(false, false)
		return
	}

	log := logger.WithField("run_id", job.RunID)
	if err := handle(ctx, &job); err != nil {
		log.Error().Err(err).Msg("任务处理失败")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
	log.Info().Dur("wait", time.Since(job.EnqueuedAt)).Msg("任务处理完成")
}
