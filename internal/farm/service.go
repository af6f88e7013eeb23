// Package farm は圃場管理のドメインロジックを提供する。
package farm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/agrisense/internal/model"
	"github.com/hitoshi/agrisense/internal/repository"
)

// TextSanitizer は自由記述欄からマークアップを取り除くインターフェース。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// Service は圃場管理のサービス層。
type Service struct {
	farms     repository.FarmRepository
	sanitizer TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(farms repository.FarmRepository, sanitizer TextSanitizer) *Service {
	return &Service{
		farms:     farms,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Get は指定IDの圃場を返す。IDがUUIDとして不正な場合も存在しない圃場として扱う。
func (s *Service) Get(ctx context.Context, id string) (*model.Farm, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewFarmNotFoundError(id)
	}

	farm, err := s.farms.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("圃場の取得に失敗しました: %w", err)
	}
	if farm == nil {
		return nil, model.NewFarmNotFoundError(id)
	}
	return farm, nil
}

// List は全圃場を返す。
func (s *Service) List(ctx context.Context) ([]*model.Farm, error) {
	farms, err := s.farms.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("圃場一覧の取得に失敗しました: %w", err)
	}
	return farms, nil
}

// Create は圃場を登録する。所有者の電話番号が未指定の場合は呼び出し元の識別子を使う。
func (s *Service) Create(ctx context.Context, in model.FarmInput, caller *model.Principal) (*model.Farm, error) {
	in = s.normalize(in, caller)
	if err := validate(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	farm := &model.Farm{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	apply(farm, in)

	if err := s.farms.Create(ctx, farm); err != nil {
		return nil, fmt.Errorf("圃場の登録に失敗しました: %w", err)
	}
	return farm, nil
}

// Update は圃場情報を入力値で置き換える。
func (s *Service) Update(ctx context.Context, id string, in model.FarmInput, caller *model.Principal) (*model.Farm, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	in = s.normalize(in, caller)
	if err := validate(in); err != nil {
		return nil, err
	}

	apply(existing, in)
	existing.UpdatedAt = s.now().UTC()

	found, err := s.farms.Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("圃場の更新に失敗しました: %w", err)
	}
	if !found {
		return nil, model.NewFarmNotFoundError(id)
	}
	return existing, nil
}

// Delete は圃場を削除する。関連するセンサーデータ、アラート、予測も削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewFarmNotFoundError(id)
	}

	found, err := s.farms.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("圃場の削除に失敗しました: %w", err)
	}
	if !found {
		return model.NewFarmNotFoundError(id)
	}
	return nil
}

// normalize は自由記述欄をサニタイズし、既定値を補う。
func (s *Service) normalize(in model.FarmInput, caller *model.Principal) model.FarmInput {
	in.Name = s.sanitizer.Sanitize(in.Name)
	in.Location = s.sanitizer.Sanitize(in.Location)
	in.GrowthStage = s.sanitizer.Sanitize(in.GrowthStage)
	in.CropType = strings.ToUpper(strings.TrimSpace(in.CropType))
	if in.CropType == "" {
		in.CropType = model.DefaultCropType
	}
	in.OwnerPhone = strings.TrimSpace(in.OwnerPhone)
	if in.OwnerPhone == "" && caller != nil {
		in.OwnerPhone = caller.Identifier
	}
	return in
}

func validate(in model.FarmInput) error {
	if in.Name == "" {
		return model.NewValidationError("name is required")
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		return model.NewValidationError("latitude must be between -90 and 90")
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return model.NewValidationError("longitude must be between -180 and 180")
	}
	if in.SizeHectares < 0 {
		return model.NewValidationError("sizeHectares must not be negative")
	}
	return nil
}

func apply(farm *model.Farm, in model.FarmInput) {
	farm.Name = in.Name
	farm.Location = in.Location
	farm.Latitude = in.Latitude
	farm.Longitude = in.Longitude
	farm.SizeHectares = in.SizeHectares
	farm.CropType = in.CropType
	farm.PlantingDate = in.PlantingDate
	farm.GrowthStage = in.GrowthStage
	farm.OwnerPhone = in.OwnerPhone
}
