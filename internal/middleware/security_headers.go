package middleware

import (
	"net/http"
	"strings"
)

// apiContentSecurityPolicy はJSON APIの応答に付与するCSP。
// Swagger UIはスクリプトとスタイルを読み込むため対象外とする。
const apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			if !strings.HasPrefix(r.URL.Path, "/swagger-ui") {
				w.Header().Set("Content-Security-Policy", apiContentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
