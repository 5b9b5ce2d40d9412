package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wisefido-carehub/internal/clock"
	"wisefido-carehub/internal/metrics"
	"wisefido-carehub/internal/models"
	"wisefido-carehub/internal/notifier"

	"go.uber.org/zap"
)

// ReminderSource 提醒列表来源（每次 tick 重新读取）
type ReminderSource interface {
	List(ctx context.Context, userName string) ([]models.Reminder, error)
}

// AlertLog 事件日志
type AlertLog interface {
	Append(ctx context.Context, kind models.EventKind, msg string, now time.Time) models.EventRecord
}

// Notifier 遥测派发（异步，不返回结果）
type Notifier interface {
	Telemetry(feed, value string)
	TelemetryAfter(delay time.Duration, feed, value string)
}

// Config 调度配置
type Config struct {
	PollInterval time.Duration
	ClearDelay   time.Duration
	Feed         string
	// Location 提醒时间所在时区，为空时按传入时间原样格式化
	Location *time.Location
}

// Scheduler 用药提醒调度器（单用户）
type Scheduler struct {
	userName  string
	reminders ReminderSource
	log       AlertLog
	notifier  Notifier
	clock     clock.Clock
	config    Config
	logger    *zap.Logger
	metrics   *metrics.Collector

	mu              sync.Mutex
	lastFiredMinute string

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler 创建调度器
func NewScheduler(
	userName string,
	reminders ReminderSource,
	log AlertLog,
	n Notifier,
	clk clock.Clock,
	cfg Config,
	logger *zap.Logger,
	m *metrics.Collector,
) *Scheduler {
	return &Scheduler{
		userName:  userName,
		reminders: reminders,
		log:       log,
		notifier:  n,
		clock:     clk,
		config:    cfg,
		logger:    logger.With(zap.String("user_name", userName)),
		metrics:   m,
	}
}

// SeedLastFiredMinute 恢复上一次会话的去重状态，需在 Start 之前调用
func (s *Scheduler) SeedLastFiredMinute(minute string) {
	s.mu.Lock()
	s.lastFiredMinute = minute
	s.mu.Unlock()
}

// Tick 评估一次：当前分钟有到期提醒时触发
// 同一分钟只触发一次；同一分钟有多条提醒时只处理列表中的第一条
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	s.metrics.ObserveTick()

	if s.config.Location != nil {
		now = now.In(s.config.Location)
	}
	minute := models.FormatMinute(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	if minute == s.lastFiredMinute {
		return nil
	}

	reminders, err := s.reminders.List(ctx, s.userName)
	if err != nil {
		return fmt.Errorf("failed to list reminders: %w", err)
	}

	var due *models.Reminder
	for i := range reminders {
		if reminders[i].Time == minute {
			due = &reminders[i]
			break
		}
	}
	if due == nil {
		return nil
	}

	s.lastFiredMinute = minute

	s.notifier.Telemetry(s.config.Feed, notifier.SignalAssert)
	record := s.log.Append(ctx, models.EventKindMedication, models.MedicationMessage(due.Desc), now)
	s.notifier.TelemetryAfter(s.config.ClearDelay, s.config.Feed, notifier.SignalClear)

	s.logger.Info("Medication reminder fired",
		zap.String("minute", minute),
		zap.String("desc", due.Desc),
		zap.Int64("record_id", record.ID),
	)
	return nil
}

// Run 轮询直到 ctx 结束（阻塞）
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Reminder scheduler started",
		zap.Duration("poll_interval", s.config.PollInterval),
	)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	// 立即执行一次
	if err := s.Tick(ctx, s.clock.Now()); err != nil {
		s.logger.Error("Failed to evaluate reminders on startup", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Tick(ctx, s.clock.Now()); err != nil {
				s.logger.Error("Failed to evaluate reminders", zap.Error(err))
				// 继续执行，不中断
			}
		}
	}
}

// Start 在后台启动轮询；已启动时不做任何事
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.Run(runCtx)
	}()
}

// Stop 停止轮询并等待退出
// 已派发的延迟复位信号不会被取消
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Restart 提醒列表变更后重启轮询（保留本分钟的去重状态）
func (s *Scheduler) Restart(ctx context.Context) {
	s.Stop()
	s.Start(ctx)
}

// Running 是否正在轮询
func (s *Scheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.cancel != nil
}

// LastFiredMinute 最近一次触发的分钟（"HH:MM"），未触发时为空
func (s *Scheduler) LastFiredMinute() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFiredMinute
}
