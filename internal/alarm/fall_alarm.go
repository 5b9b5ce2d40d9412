package alarm

import (
	"context"
	"sync"
	"time"

	"wisefido-carehub/internal/clock"
	"wisefido-carehub/internal/metrics"
	"wisefido-carehub/internal/models"
	"wisefido-carehub/internal/notifier"

	"go.uber.org/zap"
)

// AlertLog 事件日志
type AlertLog interface {
	Append(ctx context.Context, kind models.EventKind, msg string, now time.Time) models.EventRecord
}

// Notifier 遥测和消息派发（异步，不返回结果）
type Notifier interface {
	Telemetry(feed, value string)
	Message(recipientID, text string)
}

// ProfileFunc 返回当前会话的用户档案；无会话时返回 false
type ProfileFunc func() (models.User, bool)

// FallAlarm 跌倒报警状态机（Idle / Active），状态不持久化
type FallAlarm struct {
	profile  ProfileFunc
	log      AlertLog
	notifier Notifier
	clock    clock.Clock
	feed     string
	logger   *zap.Logger
	metrics  *metrics.Collector

	mu    sync.Mutex
	state models.AlarmState
}

// NewFallAlarm 创建跌倒报警，初始状态为 Idle
func NewFallAlarm(profile ProfileFunc, log AlertLog, n Notifier, clk clock.Clock, feed string, logger *zap.Logger, m *metrics.Collector) *FallAlarm {
	return &FallAlarm{
		profile:  profile,
		log:      log,
		notifier: n,
		clock:    clk,
		feed:     feed,
		logger:   logger,
		metrics:  m,
		state:    models.AlarmIdle,
	}
}

// Trigger 触发跌倒报警
// 无会话时记录警告并忽略；已处于 Active 时不重复派发
func (a *FallAlarm) Trigger(ctx context.Context) models.AlarmState {
	user, ok := a.profile()
	if !ok {
		a.logger.Warn("Fall trigger ignored: no active session")
		return a.State()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	logger := a.logger.With(zap.String("user_name", user.Name))
	if a.state == models.AlarmActive {
		logger.Info("Fall alarm already active, trigger ignored")
		return a.state
	}

	a.state = models.AlarmActive
	a.metrics.SetFallAlarmActive(true)

	name := user.DisplayName()
	a.notifier.Telemetry(a.feed, notifier.SignalAssert)
	record := a.log.Append(ctx, models.EventKindFall, models.ImpactMessage(name), a.clock.Now())

	if user.HasRecipient() {
		a.notifier.Message(user.TelegramID, models.EmergencyText(name))
	} else {
		logger.Warn("No emergency contact configured, message skipped")
	}

	logger.Info("Fall alarm triggered",
		zap.String("patient_name", name),
		zap.Int64("record_id", record.ID),
	)
	return a.state
}

// Clear 解除跌倒报警，不写事件日志
// 已处于 Idle 时不做任何事
func (a *FallAlarm) Clear(ctx context.Context) models.AlarmState {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == models.AlarmIdle {
		return a.state
	}

	a.state = models.AlarmIdle
	a.metrics.SetFallAlarmActive(false)
	a.notifier.Telemetry(a.feed, notifier.SignalClear)

	a.logger.Info("Fall alarm cleared")
	return a.state
}

// State 当前状态
func (a *FallAlarm) State() models.AlarmState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}
