package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wisefido-carehub/internal/metrics"
	"wisefido-carehub/internal/models"

	"go.uber.org/zap"
)

// Store 事件日志持久化（整体覆盖）
type Store interface {
	Load(ctx context.Context, userName string) ([]models.EventRecord, error)
	Save(ctx context.Context, userName string, records []models.EventRecord) error
	Delete(ctx context.Context, userName string) error
}

// Sink 事件镜像（归档库、报警流），失败只记录日志
type Sink interface {
	Record(ctx context.Context, entry models.AlertEntry) error
}

// EventLog 单个用户的事件日志，新记录插入头部
type EventLog struct {
	mu       sync.Mutex
	userName string
	records  []models.EventRecord
	lastID   int64

	store   Store
	sinks   []Sink
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New 创建事件日志并加载已持久化的记录
func New(ctx context.Context, userName string, store Store, logger *zap.Logger, m *metrics.Collector, sinks ...Sink) (*EventLog, error) {
	records, err := store.Load(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to load event log for %s: %w", userName, err)
	}

	l := &EventLog{
		userName: userName,
		records:  records,
		store:    store,
		sinks:    sinks,
		logger:   logger.With(zap.String("user_name", userName)),
		metrics:  m,
	}
	// 新 ID 必须大于已加载的记录
	for _, r := range records {
		if r.ID > l.lastID {
			l.lastID = r.ID
		}
	}
	return l, nil
}

// Append 追加一条事件并整体持久化
// 持久化失败不影响内存中的记录
func (l *EventLog) Append(ctx context.Context, kind models.EventKind, msg string, now time.Time) models.EventRecord {
	l.mu.Lock()
	id := now.UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id

	record := models.EventRecord{
		ID:   id,
		Time: models.FormatMinute(now),
		Msg:  msg,
	}
	l.records = append([]models.EventRecord{record}, l.records...)

	if err := l.store.Save(ctx, l.userName, l.records); err != nil {
		l.logger.Error("Failed to persist event log",
			zap.Int64("record_id", record.ID),
			zap.Error(err),
		)
	}
	l.mu.Unlock()

	l.metrics.ObserveAlert(string(kind))
	l.logger.Info("Event appended",
		zap.String("kind", string(kind)),
		zap.Int64("record_id", record.ID),
		zap.String("msg", msg),
	)

	entry := models.AlertEntry{UserName: l.userName, Kind: kind, Record: record}
	for _, sink := range l.sinks {
		if err := sink.Record(ctx, entry); err != nil {
			l.logger.Warn("Failed to mirror event",
				zap.Int64("record_id", record.ID),
				zap.Error(err),
			)
		}
	}

	return record
}

// Clear 清空事件日志（内存和持久化）
func (l *EventLog) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = nil
	if err := l.store.Delete(ctx, l.userName); err != nil {
		return fmt.Errorf("failed to clear event log: %w", err)
	}

	l.logger.Info("Event log cleared")
	return nil
}

// Records 返回记录副本（新在前）
func (l *EventLog) Records() []models.EventRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.EventRecord, len(l.records))
	copy(out, l.records)
	return out
}
