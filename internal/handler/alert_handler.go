package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/agrisense/internal/middleware"
	"github.com/hitoshi/agrisense/internal/model"
)

// AlertServiceInterface はアラートハンドラーが必要とするサービスインターフェース。
type AlertServiceInterface interface {
	Send(ctx context.Context, in model.AlertInput) (*model.Alert, error)
	History(ctx context.Context, farmID string) ([]*model.Alert, error)
}

// AlertHandler はSMSアラートのHTTPハンドラー。
type AlertHandler struct {
	service AlertServiceInterface
}

// NewAlertHandler はAlertHandlerを生成する。
func NewAlertHandler(service AlertServiceInterface) *AlertHandler {
	return &AlertHandler{service: service}
}

type sendAlertRequest struct {
	FarmID    string `json:"farmId"`
	Phone     string `json:"phone"`
	Language  string `json:"language"`
	Message   string `json:"message"`
	AlertType string `json:"alertType"`
}

type alertResponse struct {
	ID        string    `json:"id"`
	FarmID    string    `json:"farmId"`
	AlertType string    `json:"alertType"`
	Phone     string    `json:"phone"`
	Language  string    `json:"language"`
	Message   string    `json:"message"`
	MessageID string    `json:"messageId,omitempty"`
	Status    string    `json:"status"`
	SentAt    time.Time `json:"sentAt"`
}

// SendSMS はSMSアラートを送信する。
// POST /api/v1/alerts/sms
func (h *AlertHandler) SendSMS(w http.ResponseWriter, r *http.Request) {
	var req sendAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	alert, err := h.service.Send(r.Context(), model.AlertInput{
		FarmID:    req.FarmID,
		Phone:     req.Phone,
		Language:  req.Language,
		Message:   req.Message,
		AlertType: req.AlertType,
	})
	if err != nil {
		var apiErr *model.APIError
		if alert != nil && errors.As(err, &apiErr) {
			// 送信失敗でも記録済みのIDを返す
			w.Header().Set("X-Alert-Id", alert.ID)
			middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
			return
		}
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAlertResponse(alert))
}

// ListAlerts は圃場のアラート送信履歴を返す。
// GET /api/v1/farms/{farmId}/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.History(r.Context(), chi.URLParam(r, "farmId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]alertResponse, len(alerts))
	for i, a := range alerts {
		resp[i] = toAlertResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

func toAlertResponse(a *model.Alert) alertResponse {
	return alertResponse{
		ID:        a.ID,
		FarmID:    a.FarmID,
		AlertType: a.AlertType,
		Phone:     a.Phone,
		Language:  a.Language,
		Message:   a.Message,
		MessageID: a.MessageID,
		Status:    string(a.Status),
		SentAt:    a.SentAt,
	}
}
