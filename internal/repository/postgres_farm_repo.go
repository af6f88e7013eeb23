package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/agrisense/internal/model"
)

// PostgresFarmRepo はPostgreSQLを使用した圃場リポジトリ。
type PostgresFarmRepo struct {
	db *sql.DB
}

// NewPostgresFarmRepo はPostgresFarmRepoを生成する。
func NewPostgresFarmRepo(db *sql.DB) *PostgresFarmRepo {
	return &PostgresFarmRepo{db: db}
}

const farmColumns = `id, name, location, latitude, longitude, size_hectares, crop_type,
	planting_date, growth_stage, owner_phone, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFarm(s rowScanner) (*model.Farm, error) {
	f := &model.Farm{}
	var plantingDate sql.NullTime
	err := s.Scan(
		&f.ID, &f.Name, &f.Location, &f.Latitude, &f.Longitude, &f.SizeHectares, &f.CropType,
		&plantingDate, &f.GrowthStage, &f.OwnerPhone, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if plantingDate.Valid {
		t := plantingDate.Time
		f.PlantingDate = &t
	}
	return f, nil
}

// FindByID は指定IDの圃場を取得する。見つからない場合はnilを返す。
func (r *PostgresFarmRepo) FindByID(ctx context.Context, id string) (*model.Farm, error) {
	f, err := scanFarm(r.db.QueryRowContext(ctx,
		`SELECT `+farmColumns+` FROM farms WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find farm by ID: %w", err)
	}
	return f, nil
}

// List は全圃場を作成日時の昇順で返す。
func (r *PostgresFarmRepo) List(ctx context.Context) ([]*model.Farm, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+farmColumns+` FROM farms ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list farms: %w", err)
	}
	defer rows.Close()

	farms := make([]*model.Farm, 0)
	for rows.Next() {
		f, err := scanFarm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan farm: %w", err)
		}
		farms = append(farms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate farms: %w", err)
	}
	return farms, nil
}

// Create は圃場を作成する。
func (r *PostgresFarmRepo) Create(ctx context.Context, farm *model.Farm) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO farms (id, name, location, latitude, longitude, size_hectares, crop_type,
		                    planting_date, growth_stage, owner_phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		farm.ID, farm.Name, farm.Location, farm.Latitude, farm.Longitude, farm.SizeHectares, farm.CropType,
		farm.PlantingDate, farm.GrowthStage, farm.OwnerPhone, farm.CreatedAt, farm.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert farm: %w", err)
	}
	return nil
}

// Update は圃場情報を上書き更新する。created_atは変更しない。
func (r *PostgresFarmRepo) Update(ctx context.Context, farm *model.Farm) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE farms
		 SET name = $2, location = $3, latitude = $4, longitude = $5, size_hectares = $6,
		     crop_type = $7, planting_date = $8, growth_stage = $9, owner_phone = $10, updated_at = $11
		 WHERE id = $1`,
		farm.ID, farm.Name, farm.Location, farm.Latitude, farm.Longitude, farm.SizeHectares,
		farm.CropType, farm.PlantingDate, farm.GrowthStage, farm.OwnerPhone, farm.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update farm: %w", err)
	}
	return affectedOne(result)
}

// Delete は指定IDの圃場を削除する。
func (r *PostgresFarmRepo) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM farms WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete farm: %w", err)
	}
	return affectedOne(result)
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ FarmRepository = (*PostgresFarmRepo)(nil)
