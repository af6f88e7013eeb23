// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/agrisense/internal/model"
)

// ErrDuplicateIdentifier は電話番号が既に登録済みであることを表す。
var ErrDuplicateIdentifier = errors.New("identifier already registered")

// AccountRepository はアカウントの永続化インターフェース。
// 認証パイプラインのクレデンシャルストアとして使用される。
type AccountRepository interface {
	// FindByIdentifier は電話番号の完全一致でアカウントを取得する。見つからない場合はnilを返す。
	FindByIdentifier(ctx context.Context, identifier string) (*model.Account, error)

	// Create はアカウントを作成し、採番されたIDを設定する。
	// 電話番号が重複する場合は ErrDuplicateIdentifier を返す。
	Create(ctx context.Context, account *model.Account) error
}

// FarmRepository は圃場データの永続化インターフェース。
type FarmRepository interface {
	// FindByID は指定IDの圃場を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Farm, error)

	// List は全圃場を作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.Farm, error)

	// Create は圃場を作成する。
	Create(ctx context.Context, farm *model.Farm) error

	// Update は圃場情報を上書き更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, farm *model.Farm) (bool, error)

	// Delete は指定IDの圃場を削除する。関連するセンサーデータ、アラート、予測はCASCADE削除される。
	// 対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id string) (bool, error)
}

// SensorReadingRepository はセンサー計測値の永続化インターフェース。
type SensorReadingRepository interface {
	// Create は計測値を保存し、採番されたIDを設定する。
	Create(ctx context.Context, reading *model.SensorReading) error

	// FindLatestByFarm は圃場の最新計測値を取得する。見つからない場合はnilを返す。
	FindLatestByFarm(ctx context.Context, farmID string) (*model.SensorReading, error)

	// ListByFarmBetween は圃場の計測値のうち from <= timestamp <= to のものを時刻昇順で返す。
	ListByFarmBetween(ctx context.Context, farmID string, from, to time.Time) ([]*model.SensorReading, error)
}

// AlertRepository はSMSアラート送信記録の永続化インターフェース。
type AlertRepository interface {
	// Create は送信記録を保存する。
	Create(ctx context.Context, alert *model.Alert) error

	// ListByFarm は圃場の送信記録を送信日時の降順で返す。
	ListByFarm(ctx context.Context, farmID string) ([]*model.Alert, error)
}

// PredictionRepository は作物ストレス予測の永続化インターフェース。
type PredictionRepository interface {
	// Create は予測を保存し、採番されたIDを設定する。
	Create(ctx context.Context, prediction *model.Prediction) error

	// FindLatestByFarm は圃場の最新予測を取得する。見つからない場合はnilを返す。
	FindLatestByFarm(ctx context.Context, farmID string) (*model.Prediction, error)
}
