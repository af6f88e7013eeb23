package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/agrisense/internal/model"
)

const bearerPrefix = "Bearer "

// PrincipalResolver はベアラートークンからPrincipalを解決するインターフェース。
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, rawAccess string) (*model.Principal, error)
}

// NewTokenVerificationMiddleware はAuthorizationヘッダーのベアラートークンを検証し、
// Principalをリクエストコンテキストに束縛するミドルウェアを返す。
//
// 保護パスではトークンの欠落も含めて検証失敗を401で拒否する。
// 公開パスではヘッダーがなければ匿名のまま通し、検証に失敗した場合も匿名として続行する。
// ストア障害はどちらのパスでも500とする。
func NewTokenVerificationMiddleware(resolver PrincipalResolver, policy *Policy, logger *slog.Logger, metrics AuthMetrics) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NopAuthMetrics{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			public := policy.IsPublicRequest(r)

			raw, present := bearerToken(r)
			if !present {
				if public {
					next.ServeHTTP(w, r)
					return
				}
				metrics.RecordAuthFailure(StageTokenVerification, model.AuthTokenInvalid)
				logger.Warn("authentication failed",
					slog.String("stage", StageTokenVerification),
					slog.String("auth_failure_kind", string(model.AuthTokenInvalid)),
					slog.String("reason", "missing bearer token"),
					slog.String("path", r.URL.Path),
				)
				WriteAuthFailure(w)
				return
			}

			principal, err := resolver.ResolvePrincipal(r.Context(), raw)
			if err != nil {
				kind, isAuth := model.AuthFailureKindOf(err)
				if !isAuth {
					logger.Error("failed to resolve principal",
						slog.String("stage", StageTokenVerification),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
					WriteAuthInternalError(w)
					return
				}

				metrics.RecordAuthFailure(StageTokenVerification, kind)
				if public {
					logger.Debug("ignoring invalid token on public path",
						slog.String("auth_failure_kind", string(kind)),
						slog.String("path", r.URL.Path),
					)
					next.ServeHTTP(w, r)
					return
				}

				logger.Warn("authentication failed",
					slog.String("stage", StageTokenVerification),
					slog.String("auth_failure_kind", string(kind)),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteAuthFailure(w)
				return
			}

			metrics.RecordAuthSuccess(StageTokenVerification)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// bearerToken はAuthorizationヘッダーからベアラートークンを取り出す。
// ヘッダーが存在すればpresentはtrueとなり、形式が不正な場合は空文字列を返す。
func bearerToken(r *http.Request) (raw string, present bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", true
	}
	return strings.TrimSpace(header[len(bearerPrefix):]), true
}
