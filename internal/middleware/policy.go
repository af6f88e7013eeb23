package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/hitoshi/agrisense/internal/model"
)

// DefaultPublicPatterns は認証なしでアクセスできるパスの既定の許可リスト。
// "/**" で終わるパターンは前方一致、それ以外は完全一致で判定する。
var DefaultPublicPatterns = []string{
	"/api/v1/auth/**",
	"/swagger-ui/**",
	"/swagger-ui.html",
	"/v3/api-docs/**",
	"/webjars/**",
	"/favicon.ico",
	"/actuator/**",
	"/healthz",
	"/metrics",
}

// Policy は公開パスの許可リストと認可ステージを保持する。
type Policy struct {
	exact    map[string]struct{}
	prefixes []string
	logger   *slog.Logger
	metrics  AuthMetrics
}

// NewPolicy は許可リストのパターンからPolicyを生成する。
func NewPolicy(patterns []string, logger *slog.Logger, metrics AuthMetrics) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NopAuthMetrics{}
	}

	p := &Policy{
		exact:   make(map[string]struct{}),
		logger:  logger,
		metrics: metrics,
	}
	for _, pattern := range patterns {
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			p.prefixes = append(p.prefixes, prefix)
			continue
		}
		p.exact[pattern] = struct{}{}
	}
	return p
}

// IsPublic はパスが許可リストに一致するかを判定する。
// "/api/v1/auth/../farms" のようなパスは正規化してから判定する。
func (p *Policy) IsPublic(requestPath string) bool {
	if requestPath == "" {
		requestPath = "/"
	}
	return p.matches(path.Clean(requestPath))
}

// IsPublicRequest はリクエストが公開パス宛てかを判定する。
// 正規化後のデコード済みパスと、ルーターが実際に照合するエスケープ済みパスの両方が
// 許可リストに一致する場合のみ公開とみなす。"/farms/..%2Fauth%2Fx" のように両者が食い違うものは保護パスになる。
func (p *Policy) IsPublicRequest(r *http.Request) bool {
	if !p.IsPublic(r.URL.Path) {
		return false
	}
	routed := r.URL.RawPath
	if routed == "" {
		routed = r.URL.Path
	}
	return p.matches(routed)
}

func (p *Policy) matches(requestPath string) bool {
	if _, ok := p.exact[requestPath]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if requestPath == prefix || strings.HasPrefix(requestPath, prefix+"/") {
			return true
		}
	}
	return false
}

// Authorize は認可ステージのミドルウェアを返す。
// 公開パスはそのまま通し、保護パスはPrincipalが束縛されていることを要求する。
func (p *Policy) Authorize() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p.IsPublicRequest(r) {
				next.ServeHTTP(w, r)
				return
			}

			if _, err := PrincipalFromContext(r.Context()); err != nil {
				// トークン検証ステージが先に拒否しているはずなので、ここに来るのは配線の誤り
				failure := model.NewAuthFailure(model.AuthPrincipalMissing, errors.New("protected path reached without principal"))
				p.metrics.RecordAuthFailure(StageAuthorization, failure.Kind)
				p.logger.Error("authorization failed",
					slog.String("stage", StageAuthorization),
					slog.String("auth_failure_kind", string(failure.Kind)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteAuthFailure(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Stages は認証パイプラインを構成するステージ。
type Stages struct {
	Verification       func(next http.Handler) http.Handler
	CredentialExchange func(next http.Handler) http.Handler
}

// Pipeline はトークン検証、認可、資格情報交換の順にステージを合成したミドルウェアを返す。
// 資格情報交換が公開パス上のログイン要求を処理し、それ以外はルーターに渡る。
func (p *Policy) Pipeline(stages Stages) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := next
		if stages.CredentialExchange != nil {
			h = stages.CredentialExchange(h)
		}
		h = p.Authorize()(h)
		if stages.Verification != nil {
			h = stages.Verification(h)
		}
		return h
	}
}
