package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/agrisense/internal/model"
)

// PostgresSensorReadingRepo はPostgreSQLを使用したセンサー計測値リポジトリ。
type PostgresSensorReadingRepo struct {
	db *sql.DB
}

// NewPostgresSensorReadingRepo はPostgresSensorReadingRepoを生成する。
func NewPostgresSensorReadingRepo(db *sql.DB) *PostgresSensorReadingRepo {
	return &PostgresSensorReadingRepo{db: db}
}

// Create は計測値を保存し、採番されたIDと作成日時を設定する。
func (r *PostgresSensorReadingRepo) Create(ctx context.Context, reading *model.SensorReading) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sensor_readings (farm_id, soil_moisture, temperature, humidity, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		reading.FarmID, reading.SoilMoisture, reading.Temperature, reading.Humidity, reading.Timestamp,
	).Scan(&reading.ID, &reading.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sensor reading: %w", err)
	}
	return nil
}

// FindLatestByFarm は圃場の最新計測値を取得する。見つからない場合はnilを返す。
func (r *PostgresSensorReadingRepo) FindLatestByFarm(ctx context.Context, farmID string) (*model.SensorReading, error) {
	s := &model.SensorReading{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, farm_id, soil_moisture, temperature, humidity, recorded_at, created_at
		 FROM sensor_readings
		 WHERE farm_id = $1
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT 1`,
		farmID,
	).Scan(&s.ID, &s.FarmID, &s.SoilMoisture, &s.Temperature, &s.Humidity, &s.Timestamp, &s.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest sensor reading: %w", err)
	}
	return s, nil
}

// ListByFarmBetween は期間内の計測値を時刻昇順で返す。境界は両端を含む。
func (r *PostgresSensorReadingRepo) ListByFarmBetween(ctx context.Context, farmID string, from, to time.Time) ([]*model.SensorReading, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, farm_id, soil_moisture, temperature, humidity, recorded_at, created_at
		 FROM sensor_readings
		 WHERE farm_id = $1 AND recorded_at BETWEEN $2 AND $3
		 ORDER BY recorded_at ASC, id ASC`,
		farmID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensor readings: %w", err)
	}
	defer rows.Close()

	readings := make([]*model.SensorReading, 0)
	for rows.Next() {
		s := &model.SensorReading{}
		if err := rows.Scan(&s.ID, &s.FarmID, &s.SoilMoisture, &s.Temperature, &s.Humidity, &s.Timestamp, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sensor reading: %w", err)
		}
		readings = append(readings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensor readings: %w", err)
	}
	return readings, nil
}

// compile-time interface check
var _ SensorReadingRepository = (*PostgresSensorReadingRepo)(nil)
