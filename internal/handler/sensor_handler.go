package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agrisense/internal/model"
)

// SensorServiceInterface はセンサーデータハンドラーが必要とするサービスインターフェース。
type SensorServiceInterface interface {
	Record(ctx context.Context, reading *model.SensorReading) (*model.SensorReading, error)
	Latest(ctx context.Context, farmID string) (*model.SensorReading, error)
	History(ctx context.Context, farmID string, from, to *time.Time) ([]*model.SensorReading, error)
}

// SensorHandler はセンサーデータのHTTPハンドラー。
type SensorHandler struct {
	service SensorServiceInterface
}

// NewSensorHandler はSensorHandlerを生成する。
func NewSensorHandler(service SensorServiceInterface) *SensorHandler {
	return &SensorHandler{service: service}
}

type sensorReadingRequest struct {
	FarmID       string     `json:"farmId"`
	SoilMoisture float64    `json:"soilMoisture"`
	Temperature  float64    `json:"temperature"`
	Humidity     float64    `json:"humidity"`
	Timestamp    *time.Time `json:"timestamp"`
}

type sensorReadingResponse struct {
	ID           int64     `json:"id"`
	FarmID       string    `json:"farmId"`
	SoilMoisture float64   `json:"soilMoisture"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	Timestamp    time.Time `json:"timestamp"`
}

// RecordReading はセンサー計測値を登録する。
// POST /api/v1/sensor-data
func (h *SensorHandler) RecordReading(w http.ResponseWriter, r *http.Request) {
	var req sensorReadingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reading := &model.SensorReading{
		FarmID:       req.FarmID,
		SoilMoisture: req.SoilMoisture,
		Temperature:  req.Temperature,
		Humidity:     req.Humidity,
	}
	if req.Timestamp != nil {
		reading.Timestamp = *req.Timestamp
	}

	saved, err := h.service.Record(r.Context(), reading)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSensorReadingResponse(saved))
}

// LatestReading は圃場の最新計測値を返す。
// GET /api/v1/farms/{farmId}/sensor-data/latest
func (h *SensorHandler) LatestReading(w http.ResponseWriter, r *http.Request) {
	reading, err := h.service.Latest(r.Context(), chi.URLParam(r, "farmId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSensorReadingResponse(reading))
}

// ListReadings は圃場の計測値を期間指定で返す。
// GET /api/v1/farms/{farmId}/sensor-data?from=&to=
func (h *SensorHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	readings, err := h.service.History(r.Context(), chi.URLParam(r, "farmId"), from, to)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]sensorReadingResponse, len(readings))
	for i, reading := range readings {
		resp[i] = toSensorReadingResponse(reading)
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseTimeParam はRFC3339形式のクエリパラメータを解析する。未指定の場合はnilを返す。
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, model.NewInvalidTimeRangeError(name + " must be an RFC3339 timestamp")
	}
	return &t, nil
}

func toSensorReadingResponse(s *model.SensorReading) sensorReadingResponse {
	return sensorReadingResponse{
		ID:           s.ID,
		FarmID:       s.FarmID,
		SoilMoisture: s.SoilMoisture,
		Temperature:  s.Temperature,
		Humidity:     s.Humidity,
		Timestamp:    s.Timestamp,
	}
}
