package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"wisefido-carehub/internal/metrics"

	"go.uber.org/zap"
)

// Dispatcher 异步派发通知，调用方不等待结果
// 结果只写日志和指标，不回写调用方状态，也不重试
type Dispatcher struct {
	telemetry Telemetry
	messenger Messenger
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *metrics.Collector

	mu       sync.Mutex
	flushing bool
	wg       sync.WaitGroup
}

// NewDispatcher 创建派发器，timeout 为单次发送的超时
func NewDispatcher(telemetry Telemetry, messenger Messenger, timeout time.Duration, logger *zap.Logger, m *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		telemetry: telemetry,
		messenger: messenger,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
	}
}

// track 登记一次发送；Flush 开始后不再接受新的发送
func (d *Dispatcher) track(kind string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.flushing {
		d.logger.Warn("Dispatcher flushing, send dropped", zap.String("kind", kind))
		return false
	}
	d.wg.Add(1)
	return true
}

// Telemetry 立即异步发布遥测值
func (d *Dispatcher) Telemetry(feed, value string) {
	if !d.track("telemetry") {
		return
	}
	go func() {
		defer d.wg.Done()
		d.publish(feed, value)
	}()
}

// TelemetryAfter 延迟 delay 后发布遥测值（定时器不可取消）
func (d *Dispatcher) TelemetryAfter(delay time.Duration, feed, value string) {
	if !d.track("telemetry") {
		return
	}
	time.AfterFunc(delay, func() {
		defer d.wg.Done()
		d.publish(feed, value)
	})
}

// Message 异步发送文本消息
func (d *Dispatcher) Message(recipientID, text string) {
	if !d.track("message") {
		return
	}
	go func() {
		defer d.wg.Done()
		d.send(recipientID, text)
	}()
}

// Wait 等待所有已派发（含延迟中）的发送完成
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Flush 停止接受新的发送，等待已派发的发送完成或 ctx 结束
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	d.flushing = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) publish(feed, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.telemetry.Publish(ctx, feed, value)
	d.metrics.ObserveSend(ChannelTelemetry, err)

	switch {
	case errors.Is(err, ErrTelemetryNotConfigured):
		d.logger.Error("Telemetry not configured, dispatch skipped",
			zap.String("feed", feed),
			zap.String("value", value),
		)
	case err != nil:
		d.logger.Warn("Telemetry publish failed",
			zap.String("feed", feed),
			zap.String("value", value),
			zap.Error(err),
		)
	default:
		d.logger.Info("Telemetry published",
			zap.String("feed", feed),
			zap.String("value", value),
		)
	}
}

func (d *Dispatcher) send(recipientID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.messenger.Send(ctx, recipientID, text)
	d.metrics.ObserveSend(ChannelTelegram, err)

	switch {
	case errors.Is(err, ErrMessengerNotConfigured):
		d.logger.Error("Messenger not configured, dispatch skipped",
			zap.String("chat_id", recipientID),
		)
	case err != nil:
		d.logger.Warn("Message send failed",
			zap.String("chat_id", recipientID),
			zap.Error(err),
		)
	default:
		d.logger.Info("Message sent", zap.String("chat_id", recipientID))
	}
}
