package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	prefetch   int
	published  []amqp.Publishing
	deliveries chan amqp.Delivery
	publishErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 8)}
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	f.prefetch = prefetchCount
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Close() error { return nil }

// fakeAck 记录确认结果
type fakeAck struct {
	mu     sync.Mutex
	acked  []uint64
	nacked []uint64
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestPublish(t *testing.T) {
	ch := newFakeChannel()
	p, err := NewPublisher(ch, "plans", time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"plans"}, ch.declared)

	job := &Job{RunID: "run-1", Request: json.RawMessage(`{"days":[]}`)}
	require.NoError(t, p.Publish(context.Background(), job))
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "run-1", msg.MessageId)
	var decoded Job
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.JSONEq(t, `{"days":[]}`, string(decoded.Request))
	assert.False(t, decoded.EnqueuedAt.IsZero())
}

func TestPublishError(t *testing.T) {
	ch := newFakeChannel()
	ch.publishErr = errors.New("closed")
	p, err := NewPublisher(ch, "plans", 0)
	require.NoError(t, err)
	assert.Error(t, p.Publish(context.Background(), &Job{RunID: "x"}))
}

func TestConsumerRun(t *testing.T) {
	ch := newFakeChannel()
	c, err := NewConsumer(ch, "plans", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, ch.prefetch)

	ack := &fakeAck{}
	body := func(runID string) []byte {
		b, _ := json.Marshal(Job{RunID: runID, EnqueuedAt: time.Now()})
		return b
	}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body("ok")}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: body("fail")}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte("garbage")}
	close(ch.deliveries)

	var mu sync.Mutex
	var handled []string
	err = c.Run(context.Background(), func(_ context.Context, job *Job) error {
		mu.Lock()
		handled = append(handled, job.RunID)
		mu.Unlock()
		if job.RunID == "fail" {
			return errors.New("求解失败")
		}
		return nil
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"ok", "fail"}, handled)
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.ElementsMatch(t, []uint64{2, 3}, ack.nacked)
}

func TestConsumerStopsOnCancel(t *testing.T) {
	ch := newFakeChannel()
	c, err := NewConsumer(ch, "plans", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(context.Context, *Job) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run 未在取消后返回")
	}
}
