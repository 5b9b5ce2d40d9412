package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// telegramResponse Bot API 响应
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// TelegramMessenger Telegram Bot 消息通道
// 不重试：紧急消息失败只记录日志
type TelegramMessenger struct {
	httpClient *resty.Client
	token      string
	logger     *zap.Logger
}

// NewTelegramMessenger 创建 Telegram 客户端
func NewTelegramMessenger(apiURL, token string, timeout time.Duration, logger *zap.Logger) *TelegramMessenger {
	client := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &TelegramMessenger{
		httpClient: client,
		token:      token,
		logger:     logger,
	}
}

// Send 调用 sendMessage
func (m *TelegramMessenger) Send(ctx context.Context, recipientID, text string) error {
	if m.token == "" {
		return ErrMessengerNotConfigured
	}

	var result telegramResponse
	resp, err := m.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"chat_id": recipientID,
			"text":    text,
		}).
		SetResult(&result).
		SetError(&result).
		Get("/bot" + m.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("failed to call telegram API: %w", err)
	}

	m.logger.Info("Telegram response",
		zap.String("chat_id", recipientID),
		zap.Int("status_code", resp.StatusCode()),
	)

	if resp.IsError() {
		return fmt.Errorf("telegram API error: %s (status: %d)", result.Description, resp.StatusCode())
	}
	return nil
}
