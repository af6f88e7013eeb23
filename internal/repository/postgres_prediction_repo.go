package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/agrisense/internal/model"
)

// PostgresPredictionRepo はPostgreSQLを使用した予測リポジトリ。
type PostgresPredictionRepo struct {
	db *sql.DB
}

// NewPostgresPredictionRepo はPostgresPredictionRepoを生成する。
func NewPostgresPredictionRepo(db *sql.DB) *PostgresPredictionRepo {
	return &PostgresPredictionRepo{db: db}
}

// Create は予測を保存し、採番されたIDと作成日時を設定する。
// Forecastが空の場合はNULLとして保存する。
func (r *PostgresPredictionRepo) Create(ctx context.Context, p *model.Prediction) error {
	var forecast interface{}
	if len(p.Forecast) > 0 {
		forecast = []byte(p.Forecast)
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO predictions (farm_id, stress_index, risk_category, confidence,
		                          days_to_critical, recommendation, forecast)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		p.FarmID, p.StressIndex, p.RiskCategory, p.Confidence, p.DaysToCritical, p.Recommendation, forecast,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// FindLatestByFarm は圃場の最新予測を取得する。見つからない場合はnilを返す。
func (r *PostgresPredictionRepo) FindLatestByFarm(ctx context.Context, farmID string) (*model.Prediction, error) {
	p := &model.Prediction{}
	var forecast []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, farm_id, stress_index, risk_category, confidence, days_to_critical,
		        recommendation, forecast, created_at
		 FROM predictions
		 WHERE farm_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		farmID,
	).Scan(&p.ID, &p.FarmID, &p.StressIndex, &p.RiskCategory, &p.Confidence, &p.DaysToCritical,
		&p.Recommendation, &forecast, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest prediction: %w", err)
	}
	p.Forecast = forecast
	return p, nil
}

// compile-time interface check
var _ PredictionRepository = (*PostgresPredictionRepo)(nil)
