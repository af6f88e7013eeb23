package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/agrisense/internal/model"
)

// PostgresAlertRepo はPostgreSQLを使用したアラート送信記録リポジトリ。
type PostgresAlertRepo struct {
	db *sql.DB
}

// NewPostgresAlertRepo はPostgresAlertRepoを生成する。
func NewPostgresAlertRepo(db *sql.DB) *PostgresAlertRepo {
	return &PostgresAlertRepo{db: db}
}

// Create は送信記録を保存する。
func (r *PostgresAlertRepo) Create(ctx context.Context, alert *model.Alert) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (id, farm_id, alert_type, phone, language, message, message_id, status, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		alert.ID, alert.FarmID, alert.AlertType, alert.Phone, alert.Language, alert.Message,
		alert.MessageID, string(alert.Status), alert.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// ListByFarm は圃場の送信記録を送信日時の降順で返す。
func (r *PostgresAlertRepo) ListByFarm(ctx context.Context, farmID string) ([]*model.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, farm_id, alert_type, phone, language, message, message_id, status, sent_at
		 FROM alerts
		 WHERE farm_id = $1
		 ORDER BY sent_at DESC`,
		farmID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*model.Alert, 0)
	for rows.Next() {
		a := &model.Alert{}
		var status string
		if err := rows.Scan(&a.ID, &a.FarmID, &a.AlertType, &a.Phone, &a.Language, &a.Message,
			&a.MessageID, &status, &a.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Status = model.AlertStatus(status)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// compile-time interface check
var _ AlertRepository = (*PostgresAlertRepo)(nil)
