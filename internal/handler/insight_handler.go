package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agrisense/internal/model"
)

// WeatherServiceInterface は気象ハンドラーが必要とするサービスインターフェース。
type WeatherServiceInterface interface {
	WeatherForFarm(ctx context.Context, farmID string) (json.RawMessage, error)
	Soil(ctx context.Context) (json.RawMessage, error)
}

// PredictionServiceInterface は予測ハンドラーが必要とするサービスインターフェース。
type PredictionServiceInterface interface {
	Current(ctx context.Context, farmID string) (*model.Prediction, error)
	Simulate(ctx context.Context, farmID string) (json.RawMessage, error)
}

// InsightHandler は気象情報と作物ストレス予測のHTTPハンドラー。
type InsightHandler struct {
	weather     WeatherServiceInterface
	predictions PredictionServiceInterface
}

// NewInsightHandler はInsightHandlerを生成する。
func NewInsightHandler(weather WeatherServiceInterface, predictions PredictionServiceInterface) *InsightHandler {
	return &InsightHandler{weather: weather, predictions: predictions}
}

type predictionResponse struct {
	ID             int64           `json:"id"`
	FarmID         string          `json:"farmId"`
	StressIndex    float64         `json:"stressIndex"`
	RiskCategory   string          `json:"riskCategory"`
	Confidence     float64         `json:"confidence"`
	DaysToCritical int             `json:"daysToCritical"`
	Recommendation string          `json:"recommendation"`
	Forecast       json.RawMessage `json:"forecast,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Weather は圃場の現在の気象情報を返す。
// GET /api/v1/farms/{farmId}/weather
func (h *InsightHandler) Weather(w http.ResponseWriter, r *http.Request) {
	body, err := h.weather.WeatherForFarm(r.Context(), chi.URLParam(r, "farmId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeRawJSON(w, body)
}

// Soil は設定済みポリゴンの土壌情報を返す。
// GET /api/v1/farms/soil
func (h *InsightHandler) Soil(w http.ResponseWriter, r *http.Request) {
	body, err := h.weather.Soil(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeRawJSON(w, body)
}

// Prediction は圃場の作物ストレス予測を返す。
// GET /api/v1/farms/{farmId}/prediction
func (h *InsightHandler) Prediction(w http.ResponseWriter, r *http.Request) {
	p, err := h.predictions.Current(r.Context(), chi.URLParam(r, "farmId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, predictionResponse{
		ID:             p.ID,
		FarmID:         p.FarmID,
		StressIndex:    p.StressIndex,
		RiskCategory:   p.RiskCategory,
		Confidence:     p.Confidence,
		DaysToCritical: p.DaysToCritical,
		Recommendation: p.Recommendation,
		Forecast:       p.Forecast,
		CreatedAt:      p.CreatedAt,
	})
}

// Simulate は圃場のシミュレーション結果を返す。
// GET /api/v1/farms/{farmId}/simulate
func (h *InsightHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	body, err := h.predictions.Simulate(r.Context(), chi.URLParam(r, "farmId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeRawJSON(w, body)
}
