// Package sensor は圃場センサーデータの登録と参照を提供する。
package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/agrisense/internal/model"
	"github.com/hitoshi/agrisense/internal/repository"
)

// DefaultHistoryWindow は期間指定がない場合の履歴取得範囲。
const DefaultHistoryWindow = 24 * time.Hour

// FarmLookup は圃場の存在確認を行うインターフェース。
type FarmLookup interface {
	Get(ctx context.Context, id string) (*model.Farm, error)
}

// IngestRecorder はセンサーデータの登録を記録するインターフェース。
type IngestRecorder interface {
	RecordSensorReadingIngested(farmID string)
}

// Service はセンサーデータのサービス層。
type Service struct {
	readings repository.SensorReadingRepository
	farms    FarmLookup
	recorder IngestRecorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnilでもよい。
func NewService(readings repository.SensorReadingRepository, farms FarmLookup, recorder IngestRecorder) *Service {
	return &Service{
		readings: readings,
		farms:    farms,
		recorder: recorder,
		now:      time.Now,
	}
}

// Record はセンサー計測値を登録する。計測時刻が未指定の場合は現在時刻を使う。
func (s *Service) Record(ctx context.Context, reading *model.SensorReading) (*model.SensorReading, error) {
	if reading.FarmID == "" {
		return nil, model.NewValidationError("farmId is required")
	}
	if reading.Humidity < 0 || reading.Humidity > 100 {
		return nil, model.NewValidationError("humidity must be between 0 and 100")
	}
	if reading.SoilMoisture < 0 {
		return nil, model.NewValidationError("soilMoisture must not be negative")
	}

	if _, err := s.farms.Get(ctx, reading.FarmID); err != nil {
		return nil, err
	}

	if reading.Timestamp.IsZero() {
		reading.Timestamp = s.now()
	}
	reading.Timestamp = reading.Timestamp.UTC()

	if err := s.readings.Create(ctx, reading); err != nil {
		return nil, fmt.Errorf("センサーデータの登録に失敗しました: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordSensorReadingIngested(reading.FarmID)
	}
	return reading, nil
}

// Latest は圃場の最新計測値を返す。
func (s *Service) Latest(ctx context.Context, farmID string) (*model.SensorReading, error) {
	if _, err := s.farms.Get(ctx, farmID); err != nil {
		return nil, err
	}

	reading, err := s.readings.FindLatestByFarm(ctx, farmID)
	if err != nil {
		return nil, fmt.Errorf("最新センサーデータの取得に失敗しました: %w", err)
	}
	if reading == nil {
		return nil, model.NewSensorDataNotFoundError(farmID)
	}
	return reading, nil
}

// History は圃場の計測値を from <= timestamp <= to の範囲で時刻昇順に返す。
// toが未指定なら現在時刻、fromが未指定ならtoの24時間前を使う。
func (s *Service) History(ctx context.Context, farmID string, from, to *time.Time) ([]*model.SensorReading, error) {
	end := s.now().UTC()
	if to != nil {
		end = to.UTC()
	}
	start := end.Add(-DefaultHistoryWindow)
	if from != nil {
		start = from.UTC()
	}
	if start.After(end) {
		return nil, model.NewInvalidTimeRangeError("from must not be after to")
	}

	if _, err := s.farms.Get(ctx, farmID); err != nil {
		return nil, err
	}

	readings, err := s.readings.ListByFarmBetween(ctx, farmID, start, end)
	if err != nil {
		return nil, fmt.Errorf("センサーデータ履歴の取得に失敗しました: %w", err)
	}
	return readings, nil
}
