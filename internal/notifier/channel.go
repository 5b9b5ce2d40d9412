package notifier

import (
	"context"
	"errors"
)

var (
	// ErrTelemetryNotConfigured 未配置遥测凭证，不发起网络连接
	ErrTelemetryNotConfigured = errors.New("telemetry credentials not configured")
	// ErrMessengerNotConfigured 未配置 Bot Token
	ErrMessengerNotConfigured = errors.New("messenger bot token not configured")
)

// 通道名称（日志与指标标签）
const (
	ChannelTelemetry = "telemetry"
	ChannelTelegram  = "telegram"
)

// 遥测取值
const (
	SignalAssert = "1"
	SignalClear  = "0"
)

// Telemetry 遥测发布通道
type Telemetry interface {
	Publish(ctx context.Context, feed, value string) error
}

// Messenger 文本消息通道
type Messenger interface {
	Send(ctx context.Context, recipientID, text string) error
}
