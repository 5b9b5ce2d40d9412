package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-carehub/internal/alarm"
	"wisefido-carehub/internal/clock"
	"wisefido-carehub/internal/eventlog"
	"wisefido-carehub/internal/metrics"
	"wisefido-carehub/internal/models"
	"wisefido-carehub/internal/repository"
	"wisefido-carehub/internal/scheduler"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoActiveSession    = errors.New("no active session")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Notifier 会话内组件共用的派发器
type Notifier interface {
	scheduler.Notifier
	alarm.Notifier
}

// Config 会话配置
type Config struct {
	Scheduler scheduler.Config
	FallFeed  string
}

// Dashboard 仪表盘状态
type Dashboard struct {
	User       models.User          `json:"user"`
	AlarmState models.AlarmState    `json:"alarm_state"`
	Telegram   string               `json:"telegram"`
	Reminders  []models.Reminder    `json:"reminders"`
	Events     []models.EventRecord `json:"events"`
}

// Manager 会话管理（同一时间最多一个活动会话）
type Manager struct {
	users     *repository.UserRepository
	reminders *repository.ReminderRepository
	events    eventlog.Store
	sinks     []eventlog.Sink
	notifier  Notifier
	clock     clock.Clock
	config    Config
	logger    *zap.Logger
	metrics   *metrics.Collector

	// 报警状态和提醒去重在进程内跨登录保留
	alarm *alarm.FallAlarm

	mu        sync.Mutex
	runCtx    context.Context
	current   *Session
	lastFired map[string]string
}

// NewManager 创建会话管理器
func NewManager(
	users *repository.UserRepository,
	reminders *repository.ReminderRepository,
	events eventlog.Store,
	n Notifier,
	clk clock.Clock,
	cfg Config,
	logger *zap.Logger,
	m *metrics.Collector,
	sinks ...eventlog.Sink,
) *Manager {
	mgr := &Manager{
		users:     users,
		reminders: reminders,
		events:    events,
		sinks:     sinks,
		notifier:  n,
		clock:     clk,
		config:    cfg,
		logger:    logger,
		metrics:   m,
		runCtx:    context.Background(),
		lastFired: make(map[string]string),
	}
	mgr.alarm = alarm.NewFallAlarm(mgr.profile, sessionLog{mgr}, n, clk, cfg.FallFeed, logger, m)
	return mgr
}

// Start 绑定调度器的生命周期 ctx，并恢复上次登录的用户
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	return m.Restore(ctx)
}

// Restore 根据 hub_current_user 恢复会话；未登录时不做任何事
func (m *Manager) Restore(ctx context.Context) error {
	user, err := m.users.GetCurrentUser(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		m.logger.Info("No user to restore")
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.openLocked(ctx, *user); err != nil {
		return err
	}
	m.logger.Info("Session restored", zap.String("user_name", user.Name))
	return nil
}

// Register 注册新用户并直接登录
func (m *Manager) Register(ctx context.Context, name, pass string) (*Session, error) {
	if name == "" || pass == "" {
		return nil, ErrInvalidCredentials
	}

	user := models.User{Name: name, Pass: pass, IsNew: true}
	if err := m.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return m.login(ctx, user)
}

// Login 用户名+密码登录，替换当前会话
func (m *Manager) Login(ctx context.Context, name, pass string) (*Session, error) {
	user, err := m.users.FindByCredentials(ctx, name, pass)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			m.logger.Warn("Login failed", zap.String("user_name", name))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return m.login(ctx, *user)
}

func (m *Manager) login(ctx context.Context, user models.User) (*Session, error) {
	if err := m.users.SetCurrentUser(ctx, user); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.openLocked(ctx, user)
	if err != nil {
		return nil, err
	}

	m.logger.Info("User logged in",
		zap.String("user_name", user.Name),
		zap.String("session_id", sess.ID),
	)
	return sess, nil
}

// Logout 登出：清除 hub_current_user 并停止会话
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.users.ClearCurrentUser(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	name := m.current.User().Name
	m.closeLocked()

	m.logger.Info("User logged out", zap.String("user_name", name))
	return nil
}

// Shutdown 停止当前会话，保留 hub_current_user 以便重启后恢复
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
}

// Current 当前会话
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNoActiveSession
	}
	return m.current, nil
}

// openLocked 创建会话并启动调度器，调用方持有 m.mu
func (m *Manager) openLocked(ctx context.Context, user models.User) (*Session, error) {
	m.closeLocked()

	events, err := eventlog.New(ctx, user.Name, m.events, m.logger, m.metrics, m.sinks...)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	sess := &Session{
		ID:        uuid.New().String(),
		StartedAt: m.clock.Now(),
		Events:    events,
		user:      user,
	}
	sess.Scheduler = scheduler.NewScheduler(user.Name, m.reminders, events, m.notifier, m.clock, m.config.Scheduler, m.logger, m.metrics)
	sess.Scheduler.SeedLastFiredMinute(m.lastFired[user.Name])

	sess.Scheduler.Start(m.runCtx)
	m.current = sess
	m.metrics.SetSessionActive(true)
	return sess, nil
}

// closeLocked 停止当前会话，调用方持有 m.mu
func (m *Manager) closeLocked() {
	if m.current == nil {
		return
	}
	m.current.close()
	if minute := m.current.Scheduler.LastFiredMinute(); minute != "" {
		m.lastFired[m.current.User().Name] = minute
	}
	m.current = nil
	m.metrics.SetSessionActive(false)
}

// profile 供跌倒报警读取当前会话的档案
func (m *Manager) profile() (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return models.User{}, false
	}
	return m.current.User(), true
}

// sessionLog 把跌倒报警的事件写入当前会话的事件日志
type sessionLog struct {
	m *Manager
}

func (l sessionLog) Append(ctx context.Context, kind models.EventKind, msg string, now time.Time) models.EventRecord {
	sess, err := l.m.Current()
	if err != nil {
		l.m.logger.Warn("Alert not logged: no active session", zap.String("msg", msg))
		return models.EventRecord{}
	}
	return sess.Events.Append(ctx, kind, msg, now)
}

// ============================================
// 档案
// ============================================

// UpdateProfile 更新患者名称和 Telegram ID
func (m *Manager) UpdateProfile(ctx context.Context, patientName, telegramID string) (models.User, error) {
	return m.updateUser(ctx, func(u *models.User) {
		u.PatientName = patientName
		u.TelegramID = telegramID
	})
}

// CompleteTour 标记新手引导已完成
func (m *Manager) CompleteTour(ctx context.Context) (models.User, error) {
	return m.updateUser(ctx, func(u *models.User) {
		u.IsNew = false
	})
}

func (m *Manager) updateUser(ctx context.Context, mutate func(u *models.User)) (models.User, error) {
	sess, err := m.Current()
	if err != nil {
		return models.User{}, err
	}

	user := sess.User()
	mutate(&user)
	if err := m.users.UpdateUser(ctx, user); err != nil {
		return models.User{}, err
	}
	sess.setUser(user)

	m.logger.Info("Profile updated",
		zap.String("user_name", user.Name),
		zap.Bool("telegram_linked", user.HasRecipient()),
	)
	return user, nil
}

// ============================================
// 用药提醒
// ============================================

// ListReminders 当前用户的提醒列表
func (m *Manager) ListReminders(ctx context.Context) ([]models.Reminder, error) {
	sess, err := m.Current()
	if err != nil {
		return nil, err
	}
	return m.reminders.List(ctx, sess.User().Name)
}

// AddReminder 新增提醒并重启调度器
func (m *Manager) AddReminder(ctx context.Context, reminder models.Reminder) ([]models.Reminder, error) {
	sess, err := m.Current()
	if err != nil {
		return nil, err
	}
	reminders, err := m.reminders.Add(ctx, sess.User().Name, reminder)
	if err != nil {
		return nil, err
	}
	m.restartScheduler(sess)
	return reminders, nil
}

// DeleteReminder 按下标删除提醒并重启调度器
func (m *Manager) DeleteReminder(ctx context.Context, index int) ([]models.Reminder, error) {
	sess, err := m.Current()
	if err != nil {
		return nil, err
	}
	reminders, err := m.reminders.Delete(ctx, sess.User().Name, index)
	if err != nil {
		return nil, err
	}
	m.restartScheduler(sess)
	return reminders, nil
}

func (m *Manager) restartScheduler(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// 会话已被替换时不再启动
	if m.current != sess {
		return
	}
	sess.Scheduler.Restart(m.runCtx)
}

// ============================================
// 跌倒报警
// ============================================

// TriggerFall 触发跌倒报警；无会话时记录警告并返回 ErrNoActiveSession
func (m *Manager) TriggerFall(ctx context.Context) (models.AlarmState, error) {
	if _, err := m.Current(); err != nil {
		m.logger.Warn("Fall trigger ignored: no active session")
		return m.alarm.State(), err
	}
	return m.alarm.Trigger(ctx), nil
}

// ClearFall 解除跌倒报警（包括上一个会话期间触发的报警）
func (m *Manager) ClearFall(ctx context.Context) (models.AlarmState, error) {
	if _, err := m.Current(); err != nil {
		return m.alarm.State(), err
	}
	return m.alarm.Clear(ctx), nil
}

// ============================================
// 事件日志
// ============================================

// Events 当前用户的事件日志（新在前）
func (m *Manager) Events() ([]models.EventRecord, error) {
	sess, err := m.Current()
	if err != nil {
		return nil, err
	}
	return sess.Events.Records(), nil
}

// ClearEvents 清空事件日志
func (m *Manager) ClearEvents(ctx context.Context) error {
	sess, err := m.Current()
	if err != nil {
		return err
	}
	return sess.Events.Clear(ctx)
}

// Dashboard 仪表盘状态
func (m *Manager) Dashboard(ctx context.Context) (*Dashboard, error) {
	sess, err := m.Current()
	if err != nil {
		return nil, err
	}

	user := sess.User()
	reminders, err := m.reminders.List(ctx, user.Name)
	if err != nil {
		return nil, err
	}

	telegram := "Not Linked"
	if user.HasRecipient() {
		telegram = "Linked"
	}

	return &Dashboard{
		User:       user.Public(),
		AlarmState: m.alarm.State(),
		Telegram:   telegram,
		Reminders:  reminders,
		Events:     sess.Events.Records(),
	}, nil
}
