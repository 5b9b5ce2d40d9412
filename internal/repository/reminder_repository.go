package repository

import (
	"context"
	"errors"
	"fmt"

	"wisefido-carehub/internal/models"
	"wisefido-carehub/internal/store"

	"go.uber.org/zap"
)

var (
	ErrInvalidReminder = errors.New("reminder requires HH:MM time and description")
	ErrReminderIndex   = errors.New("reminder index out of range")
)

// ReminderRepository 用药提醒列表（meds_{name}），按时间升序保存
type ReminderRepository struct {
	kv     store.KV
	logger *zap.Logger
}

// NewReminderRepository 创建提醒仓库
func NewReminderRepository(kv store.KV, logger *zap.Logger) *ReminderRepository {
	return &ReminderRepository{
		kv:     kv,
		logger: logger,
	}
}

// List 读取用户的提醒列表
func (r *ReminderRepository) List(ctx context.Context, userName string) ([]models.Reminder, error) {
	reminders := []models.Reminder{}
	if err := getJSON(ctx, r.kv, remindersKey(userName), &reminders); err != nil {
		return nil, fmt.Errorf("failed to load reminders: %w", err)
	}
	return reminders, nil
}

// Add 新增提醒并重新排序
func (r *ReminderRepository) Add(ctx context.Context, userName string, reminder models.Reminder) ([]models.Reminder, error) {
	if reminder.Desc == "" || !reminder.ValidTime() {
		return nil, ErrInvalidReminder
	}

	reminders, err := r.List(ctx, userName)
	if err != nil {
		return nil, err
	}
	reminders = append(reminders, reminder)
	models.SortReminders(reminders)

	if err := r.Replace(ctx, userName, reminders); err != nil {
		return nil, err
	}

	r.logger.Info("Reminder added",
		zap.String("user_name", userName),
		zap.String("reminder_time", reminder.Time),
	)
	return reminders, nil
}

// Delete 按下标删除提醒
func (r *ReminderRepository) Delete(ctx context.Context, userName string, index int) ([]models.Reminder, error) {
	reminders, err := r.List(ctx, userName)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(reminders) {
		return nil, ErrReminderIndex
	}

	filtered := make([]models.Reminder, 0, len(reminders)-1)
	filtered = append(filtered, reminders[:index]...)
	filtered = append(filtered, reminders[index+1:]...)

	if err := r.Replace(ctx, userName, filtered); err != nil {
		return nil, err
	}
	return filtered, nil
}

// Replace 整体覆盖提醒列表
func (r *ReminderRepository) Replace(ctx context.Context, userName string, reminders []models.Reminder) error {
	if err := setJSON(ctx, r.kv, remindersKey(userName), reminders); err != nil {
		return fmt.Errorf("failed to save reminders: %w", err)
	}
	return nil
}
