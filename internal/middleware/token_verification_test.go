package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/agrisense/internal/model"
)

type mockResolver struct {
	resolveFn func(ctx context.Context, raw string) (*model.Principal, error)
	calls     int
}

func (m *mockResolver) ResolvePrincipal(ctx context.Context, raw string) (*model.Principal, error) {
	m.calls++
	return m.resolveFn(ctx, raw)
}

func newResolver() *mockResolver {
	return &mockResolver{
		resolveFn: func(ctx context.Context, raw string) (*model.Principal, error) {
			switch raw {
			case "good":
				return &model.Principal{AccountID: 1, Identifier: "+15550001"}, nil
			case "expired":
				return nil, model.NewAuthFailure(model.AuthTokenExpired, errors.New("expired"))
			case "orphan":
				return nil, model.NewAuthFailure(model.AuthUnknownIdentifier, nil)
			case "broken-store":
				return nil, errors.New("connection refused")
			}
			return nil, model.NewAuthFailure(model.AuthTokenInvalid, errors.New("bad signature"))
		},
	}
}

// verify はトークン検証ミドルウェアを通してリクエストを処理し、応答と束縛されたPrincipalを返す。
func verify(t *testing.T, resolver *mockResolver, metrics AuthMetrics, method, target, authorization string) (*httptest.ResponseRecorder, *model.Principal, bool) {
	t.Helper()
	policy := NewPolicy(DefaultPublicPatterns, discardLogger(), nil)

	var (
		bound  *model.Principal
		called bool
	)
	h := NewTokenVerificationMiddleware(resolver, policy, discardLogger(), metrics)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			bound, _ = PrincipalFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, bound, called
}

func TestTokenVerification_ValidTokenBindsPrincipal(t *testing.T) {
	metrics := &recordingMetrics{}
	w, p, called := verify(t, newResolver(), metrics, http.MethodGet, "/api/v1/farms", "Bearer good")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	require.NotNil(t, p)
	assert.Equal(t, "+15550001", p.Identifier)
	assert.Equal(t, []string{StageTokenVerification}, metrics.successes)
}

func TestTokenVerification_SchemeIsCaseInsensitive(t *testing.T) {
	w, p, _ := verify(t, newResolver(), nil, http.MethodGet, "/api/v1/farms", "bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, p)
}

func TestTokenVerification_ProtectedPathRejections(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		wantKind      model.AuthFailureKind
	}{
		{"missing header", "", model.AuthTokenInvalid},
		{"wrong scheme", "Basic Zm9vOmJhcg==", model.AuthTokenInvalid},
		{"tampered token", "Bearer tampered", model.AuthTokenInvalid},
		{"expired token", "Bearer expired", model.AuthTokenExpired},
		{"account removed", "Bearer orphan", model.AuthUnknownIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingMetrics{}
			w, _, called := verify(t, newResolver(), metrics, http.MethodGet, "/api/v1/farms", tt.authorization)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, called)
			assert.JSONEq(t, `{"message":"authentication failed","status":401}`, w.Body.String())
			assert.Equal(t, []string{StageTokenVerification + ":" + string(tt.wantKind)}, metrics.failures)
		})
	}
}

func TestTokenVerification_PublicPathWithoutHeader(t *testing.T) {
	resolver := newResolver()
	w, p, called := verify(t, resolver, nil, http.MethodPost, "/api/v1/auth/login", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Nil(t, p)
	assert.Zero(t, resolver.calls)
}

func TestTokenVerification_PublicPathWithInvalidTokenContinuesAnonymously(t *testing.T) {
	for _, raw := range []string{"Bearer expired", "Bearer tampered"} {
		w, p, called := verify(t, newResolver(), nil, http.MethodPost, "/api/v1/auth/refresh", raw)

		assert.Equal(t, http.StatusOK, w.Code, raw)
		assert.True(t, called, raw)
		assert.Nil(t, p, raw)
	}
}

func TestTokenVerification_PublicPathWithValidTokenBindsPrincipal(t *testing.T) {
	_, p, _ := verify(t, newResolver(), nil, http.MethodGet, "/api/v1/auth/me", "Bearer good")
	assert.NotNil(t, p)
}

func TestTokenVerification_StoreFailureIs500(t *testing.T) {
	for _, target := range []string{"/api/v1/farms", "/api/v1/auth/me"} {
		w, _, called := verify(t, newResolver(), nil, http.MethodGet, target, "Bearer broken-store")

		assert.Equal(t, http.StatusInternalServerError, w.Code, target)
		assert.False(t, called, target)
		assert.JSONEq(t, `{"message":"internal server error","status":500}`, w.Body.String())
	}
}

func TestTokenVerification_PathTraversalStaysProtected(t *testing.T) {
	w, _, called := verify(t, newResolver(), nil, http.MethodGet, "/api/v1/auth/../farms", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestTokenVerification_EncodedTraversalStaysProtected(t *testing.T) {
	for _, target := range []string{"/api/v1/farms/..%2Fauth%2Fx", "/api/v1/farms/%2e%2e%2Fauth%2Flogin"} {
		w, p, called := verify(t, newResolver(), nil, http.MethodGet, target, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
		assert.Nil(t, p, target)
		assert.False(t, called, target)
	}
}
