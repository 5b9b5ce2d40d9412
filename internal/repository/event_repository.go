package repository

import (
	"context"
	"fmt"

	"wisefido-carehub/internal/models"
	"wisefido-carehub/internal/store"
)

// EventRepository 事件日志持久化（events_{name}，整体覆盖）
type EventRepository struct {
	kv store.KV
}

func NewEventRepository(kv store.KV) *EventRepository {
	return &EventRepository{kv: kv}
}

// Load 读取事件日志（新在前）
func (r *EventRepository) Load(ctx context.Context, userName string) ([]models.EventRecord, error) {
	records := []models.EventRecord{}
	if err := getJSON(ctx, r.kv, eventsKey(userName), &records); err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return records, nil
}

func (r *EventRepository) Save(ctx context.Context, userName string, records []models.EventRecord) error {
	if err := setJSON(ctx, r.kv, eventsKey(userName), records); err != nil {
		return fmt.Errorf("failed to save events: %w", err)
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, userName string) error {
	if err := r.kv.Del(ctx, eventsKey(userName)); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}
