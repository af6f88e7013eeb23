package middleware

import (
	"net/http"
	"time"

	"github.com/hitoshi/agrisense/internal/model"
)

const (
	// authFailureMessage はすべての認証失敗で返す共通メッセージ。
	// 識別子の存在有無や失敗理由を推測できないよう固定文言にする。
	authFailureMessage = "authentication failed"
	// tokenTypeBearer はトークン応答のtokenType。
	tokenTypeBearer = "Bearer"
)

// AuthErrorBody は認証パイプラインの失敗応答。
type AuthErrorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// TokenResponseBody はログインおよびリフレッシュ成功時の応答。
type TokenResponseBody struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken,omitempty"`
	ExpiresIn        int64  `json:"expiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn,omitempty"`
	TokenType        string `json:"tokenType"`
	IssuedAt         string `json:"issuedAt"`
	Message          string `json:"message"`
}

// WriteAuthFailure は401の共通認証失敗応答を書き込む。
// 失敗種別に関係なく同じ本文を返す。
func WriteAuthFailure(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="agrisense"`)
	writeAuthBody(w, http.StatusUnauthorized, authFailureMessage)
}

// WriteAuthInternalError は認証処理中の内部障害に対する500応答を書き込む。
// 詳細はログのみに記録する。
func WriteAuthInternalError(w http.ResponseWriter) {
	writeAuthBody(w, http.StatusInternalServerError, "internal server error")
}

func writeAuthBody(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, AuthErrorBody{Message: message, Status: status})
}

// WriteTokenGrant はトークン発行結果を200で書き込む。
func WriteTokenGrant(w http.ResponseWriter, grant *model.TokenGrant, message string) {
	body := TokenResponseBody{
		AccessToken: grant.AccessToken,
		ExpiresIn:   grant.ExpiresIn(),
		TokenType:   tokenTypeBearer,
		IssuedAt:    grant.IssuedAt.UTC().Format(time.RFC3339),
		Message:     message,
	}
	if grant.RefreshToken != "" {
		body.RefreshToken = grant.RefreshToken
		body.RefreshExpiresIn = int64(grant.RefreshExpiresAt.Sub(grant.IssuedAt).Seconds())
	}

	writeJSON(w, http.StatusOK, body)
}

// AuthMetrics は認証パイプラインの結果を記録するインターフェース。
type AuthMetrics interface {
	RecordAuthSuccess(stage string)
	RecordAuthFailure(stage string, kind model.AuthFailureKind)
}

// 認証パイプラインのステージ名（メトリクスとログのラベル）
const (
	StageCredentialExchange = "credential_exchange"
	StageTokenVerification  = "token_verification"
	StageAuthorization      = "authorization"
	StageRefresh            = "refresh"
)

// NopAuthMetrics は何も記録しないAuthMetrics。
type NopAuthMetrics struct{}

// RecordAuthSuccess は何もしない。
func (NopAuthMetrics) RecordAuthSuccess(string) {}

// RecordAuthFailure は何もしない。
func (NopAuthMetrics) RecordAuthFailure(string, model.AuthFailureKind) {}
