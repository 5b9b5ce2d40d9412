package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-carehub/internal/models"

	"go.uber.org/zap"
)

// AlertArchiveRepository 报警事件归档（PostgreSQL，可选）
// 表结构:
//
//	CREATE TABLE carehub_alert_events (
//	    record_id  BIGINT      NOT NULL,
//	    user_name  TEXT        NOT NULL,
//	    kind       TEXT        NOT NULL,
//	    minute     CHAR(5)     NOT NULL,
//	    message    TEXT        NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (user_name, record_id)
//	);
type AlertArchiveRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertArchiveRepository 创建归档仓库
func NewAlertArchiveRepository(db *sql.DB, logger *zap.Logger) *AlertArchiveRepository {
	return &AlertArchiveRepository{
		db:     db,
		logger: logger,
	}
}

// ArchivedAlert 归档记录
type ArchivedAlert struct {
	UserName  string             `json:"user_name"`
	Kind      models.EventKind   `json:"kind"`
	Record    models.EventRecord `json:"record"`
	CreatedAt time.Time          `json:"created_at"`
}

// Record 写入一条报警事件（重复写入忽略）
func (r *AlertArchiveRepository) Record(ctx context.Context, entry models.AlertEntry) error {
	if entry.UserName == "" {
		return fmt.Errorf("user_name is required")
	}

	query := `
		INSERT INTO carehub_alert_events (record_id, user_name, kind, minute, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_name, record_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.Record.ID,
		entry.UserName,
		string(entry.Kind),
		entry.Record.Time,
		entry.Record.Msg,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}

	r.logger.Debug("Archived alert event",
		zap.String("user_name", entry.UserName),
		zap.Int64("record_id", entry.Record.ID),
		zap.String("kind", string(entry.Kind)),
	)
	return nil
}

// ListByUser 按时间倒序查询用户的归档事件
func (r *AlertArchiveRepository) ListByUser(ctx context.Context, userName string, limit int) ([]ArchivedAlert, error) {
	if userName == "" {
		return nil, fmt.Errorf("user_name is required")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT record_id, user_name, kind, minute, message, created_at
		FROM carehub_alert_events
		WHERE user_name = $1
		ORDER BY record_id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	var out []ArchivedAlert
	for rows.Next() {
		var a ArchivedAlert
		var kind string
		if err := rows.Scan(&a.Record.ID, &a.UserName, &kind, &a.Record.Time, &a.Record.Msg, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		a.Kind = models.EventKind(kind)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert events: %w", err)
	}
	return out, nil
}
