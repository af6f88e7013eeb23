package model

import "time"

// DefaultCropType は作物種別が未指定の場合の既定値。
const DefaultCropType = "MAIZE"

// Farm は監視対象の圃場を表す。
type Farm struct {
	ID           string
	Name         string
	Location     string
	Latitude     float64
	Longitude    float64
	SizeHectares float64
	CropType     string
	PlantingDate *time.Time
	GrowthStage  string
	OwnerPhone   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FarmInput は圃場の作成・更新時の入力値。
type FarmInput struct {
	Name         string
	Location     string
	Latitude     float64
	Longitude    float64
	SizeHectares float64
	CropType     string
	PlantingDate *time.Time
	GrowthStage  string
	OwnerPhone   string
}
