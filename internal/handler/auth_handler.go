// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/agrisense/internal/middleware"
	"github.com/hitoshi/agrisense/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
// ログインは認証パイプラインの資格情報交換ステージが処理する。
type AuthServiceInterface interface {
	Register(ctx context.Context, in model.RegisterInput) (*model.Account, error)
	Refresh(ctx context.Context, rawRefresh string) (*model.TokenGrant, error)
}

// AuthHandler はアカウント登録、トークン更新、ログイン中アカウント取得のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics middleware.AuthMetrics
	logger  *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, metrics middleware.AuthMetrics, logger *slog.Logger) *AuthHandler {
	if metrics == nil {
		metrics = middleware.NopAuthMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{service: service, metrics: metrics, logger: logger}
}

type createAccountRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// accountView はアカウントの公開表現。パスワードハッシュは含めない。
type accountView struct {
	ID          int64      `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	PhoneNumber string     `json:"phoneNumber"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// CreateAccount はアカウントを登録する。
// POST /api/v1/auth/create-account
func (h *AuthHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.service.Register(r.Context(), model.RegisterInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	view := accountView{
		ID:          account.ID,
		FirstName:   account.FirstName,
		LastName:    account.LastName,
		PhoneNumber: account.PhoneNumber,
	}
	if !account.CreatedAt.IsZero() {
		created := account.CreatedAt.UTC()
		view.CreatedAt = &created
	}
	writeJSON(w, http.StatusCreated, view)
}

// Refresh はリフレッシュトークンから新しいアクセストークンを発行する。
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		h.reject(w, r, model.NewAuthFailure(model.AuthMalformedRequest, err))
		return
	}

	grant, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		var failure *model.AuthFailure
		if errors.As(err, &failure) {
			h.reject(w, r, failure)
			return
		}
		h.logger.ErrorContext(r.Context(), "token refresh failed",
			slog.String("stage", middleware.StageRefresh),
			slog.String("error", err.Error()),
		)
		middleware.WriteAuthInternalError(w)
		return
	}

	h.metrics.RecordAuthSuccess(middleware.StageRefresh)
	middleware.WriteTokenGrant(w, grant, "token refreshed")
}

func (h *AuthHandler) reject(w http.ResponseWriter, r *http.Request, failure *model.AuthFailure) {
	h.metrics.RecordAuthFailure(middleware.StageRefresh, failure.Kind)
	h.logger.WarnContext(r.Context(), "authentication failed",
		slog.String("stage", middleware.StageRefresh),
		slog.String("auth_failure_kind", string(failure.Kind)),
	)
	middleware.WriteAuthFailure(w)
}

// Me はログイン中のアカウントを返す。
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}

	writeJSON(w, http.StatusOK, accountView{
		ID:          p.AccountID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		PhoneNumber: p.Identifier,
	})
}
