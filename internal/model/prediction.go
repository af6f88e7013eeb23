package model

import (
	"encoding/json"
	"time"
)

// Prediction は予測サービスが返した作物ストレス予測を表す。
// Forecast は予測サービスの日次予測をそのまま保持する。
type Prediction struct {
	ID             int64
	FarmID         string
	StressIndex    float64
	RiskCategory   string
	Confidence     float64
	DaysToCritical int
	Recommendation string
	Forecast       json.RawMessage
	CreatedAt      time.Time
}
