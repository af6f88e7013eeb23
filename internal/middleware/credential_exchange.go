package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/agrisense/internal/model"
)

// maxCredentialBodyBytes はログイン要求本文の上限サイズ。
const maxCredentialBodyBytes = 1 << 16

// CredentialExchanger は識別子とシークレットをトークンに交換するインターフェース。
type CredentialExchanger interface {
	Login(ctx context.Context, identifier, secret string) (*model.TokenGrant, error)
}

// credentialRequest はログイン要求の本文。
// 旧クライアント向けにphoneNo/passwordも受け付ける。
type credentialRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	PhoneNo    string `json:"phoneNo"`
	Password   string `json:"password"`
}

func (c credentialRequest) resolve() (identifier, secret string) {
	identifier, secret = c.Identifier, c.Secret
	if identifier == "" {
		identifier = c.PhoneNo
	}
	if secret == "" {
		secret = c.Password
	}
	return identifier, secret
}

// NewCredentialExchangeMiddleware はloginPathへのPOSTを横取りし、
// 資格情報を検証してトークンを発行するミドルウェアを返す。
// それ以外のリクエストは次のハンドラーに渡す。
func NewCredentialExchangeMiddleware(loginPath string, exchanger CredentialExchanger, logger *slog.Logger, metrics AuthMetrics) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NopAuthMetrics{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != loginPath {
				next.ServeHTTP(w, r)
				return
			}

			var req credentialRequest
			r.Body = http.MaxBytesReader(w, r.Body, maxCredentialBodyBytes)
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				rejectCredentials(w, r, logger, metrics,
					model.NewAuthFailure(model.AuthMalformedRequest, err))
				return
			}

			identifier, secret := req.resolve()
			grant, err := exchanger.Login(r.Context(), identifier, secret)
			if err != nil {
				var failure *model.AuthFailure
				if errors.As(err, &failure) {
					rejectCredentials(w, r, logger, metrics, failure)
					return
				}
				logger.Error("credential exchange failed",
					slog.String("stage", StageCredentialExchange),
					slog.String("error", err.Error()),
				)
				WriteAuthInternalError(w)
				return
			}

			metrics.RecordAuthSuccess(StageCredentialExchange)
			logger.Info("login succeeded", slog.String("stage", StageCredentialExchange))
			WriteTokenGrant(w, grant, "login successful")
		})
	}
}

// rejectCredentials は失敗種別をログとメトリクスに残し、共通の401応答を返す。
// 識別子はログにも出さない。
func rejectCredentials(w http.ResponseWriter, r *http.Request, logger *slog.Logger, metrics AuthMetrics, failure *model.AuthFailure) {
	metrics.RecordAuthFailure(StageCredentialExchange, failure.Kind)
	logger.Warn("authentication failed",
		slog.String("stage", StageCredentialExchange),
		slog.String("auth_failure_kind", string(failure.Kind)),
		slog.String("remote_addr", r.RemoteAddr),
	)
	WriteAuthFailure(w)
}
