package notifier

import (
	"context"
	"fmt"
	"time"

	commoncfg "wisefido-carehub/common/config"
	mqttcommon "wisefido-carehub/common/mqtt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher 已连接的 MQTT 发布端
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

// Connector 建立一次 MQTT 连接
type Connector func(cfg *commoncfg.MQTTConfig) (Publisher, error)

// DefaultConnector 使用 paho 客户端连接，ClientID 追加随机后缀避免并发连接互踢
func DefaultConnector(cfg *commoncfg.MQTTConfig) (Publisher, error) {
	c := *cfg
	c.ClientID = fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8])
	client, err := mqttcommon.NewClient(&c)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// MQTTTelemetry Adafruit IO 遥测通道
// 每次发布：连接 -> 发布(QoS 0) -> 等待 teardownDelay 后断开，断开后 Publish 才返回
type MQTTTelemetry struct {
	cfg           commoncfg.MQTTConfig
	connect       Connector
	teardownDelay time.Duration
	logger        *zap.Logger
}

// NewMQTTTelemetry 创建遥测通道，connect 为空时使用 DefaultConnector
func NewMQTTTelemetry(cfg commoncfg.MQTTConfig, connect Connector, teardownDelay time.Duration, logger *zap.Logger) *MQTTTelemetry {
	if connect == nil {
		connect = DefaultConnector
	}
	return &MQTTTelemetry{
		cfg:           cfg,
		connect:       connect,
		teardownDelay: teardownDelay,
		logger:        logger,
	}
}

// Topic feed 对应的主题: {username}/feeds/{feed}
func (t *MQTTTelemetry) Topic(feed string) string {
	return fmt.Sprintf("%s/feeds/%s", t.cfg.Username, feed)
}

// Publish 发布遥测值
func (t *MQTTTelemetry) Publish(ctx context.Context, feed, value string) error {
	if !t.cfg.HasCredentials() {
		return ErrTelemetryNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	topic := t.Topic(feed)
	pub, err := t.connect(&t.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect telemetry broker: %w", err)
	}

	t.logger.Debug("Connected to telemetry broker",
		zap.String("broker", t.cfg.Broker),
		zap.String("topic", topic),
	)

	err = pub.Publish(topic, t.cfg.QoS, false, []byte(value))

	// 发布后延迟断开，给 broker 留出确认时间；ctx 结束时提前断开
	timer := time.NewTimer(t.teardownDelay)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}
	pub.Disconnect()
	t.logger.Debug("Telemetry connection closed", zap.String("topic", topic))

	return err
}
