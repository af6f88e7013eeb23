package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/agrisense/internal/model"
)

// requestAs はPrincipalを束縛したリクエストを生成する。
func requestAs(accountID int64, method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := ContextWithPrincipal(req.Context(), &model.Principal{AccountID: accountID})
	return req.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// --- GeneralMiddleware (API全般) のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     2, // 2 req/sec
		GeneralBurst:    5, // バースト5
		CredentialRate:  1,
		CredentialBurst: 10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs(1, http.MethodGet, "/api/v1/farms"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfterHeader(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    1, // バースト1
		CredentialRate:  1,
		CredentialBurst: 10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// 1回目は通る
	handler.ServeHTTP(httptest.NewRecorder(), requestAs(7, http.MethodGet, "/api/v1/farms"))

	// 2回目は429になる
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(7, http.MethodGet, "/api/v1/farms"))

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}

	retryAfter := w.Result().Header.Get("Retry-After")
	retrySeconds, err := strconv.Atoi(retryAfter)
	if err != nil {
		t.Fatalf("Retry-After header should be a number, got %q", retryAfter)
	}
	if retrySeconds < 1 {
		t.Errorf("Retry-After = %d, should be at least 1", retrySeconds)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("429 body should be JSON: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want %q", body.Code, "RATE_LIMIT_EXCEEDED")
	}
}

func TestRateLimitMiddleware_IsolatesAccountRateLimits(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		CredentialRate:  1,
		CredentialBurst: 10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	statusOf := func(accountID int64) int {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs(accountID, http.MethodGet, "/api/v1/farms"))
		return w.Result().StatusCode
	}

	if got := statusOf(1); got != http.StatusOK {
		t.Errorf("account 1 first request: status = %d, want %d", got, http.StatusOK)
	}
	if got := statusOf(1); got != http.StatusTooManyRequests {
		t.Errorf("account 1 second request: status = %d, want %d", got, http.StatusTooManyRequests)
	}
	// アカウント2はアカウント1のレートに影響されない
	if got := statusOf(2); got != http.StatusOK {
		t.Errorf("account 2 first request: status = %d, want %d", got, http.StatusOK)
	}
}

func TestRateLimitMiddleware_AnonymousPassesThrough(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		CredentialRate:  1,
		CredentialBurst: 1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}
	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("GeneralLimiterCount = %d, want 0", rl.GeneralLimiterCount())
	}
}

// --- CredentialMiddleware のテスト ---

func TestCredentialRateLimit_LimitsPerClientIP(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    200,
		CredentialRate:  1,
		CredentialBurst: 2,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.CredentialMiddleware("/api/v1/auth/login")(okHandler())

	post := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Result().StatusCode
	}

	for i := 0; i < 2; i++ {
		if got := post("10.0.0.1:5000"); got != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, got, http.StatusOK)
		}
	}
	// 同一IPはポートが異なっても同じバケットを共有する
	if got := post("10.0.0.1:6000"); got != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want %d", got, http.StatusTooManyRequests)
	}
	if got := post("10.0.0.2:5000"); got != http.StatusOK {
		t.Errorf("other IP: status = %d, want %d", got, http.StatusOK)
	}
	if rl.CredentialLimiterCount() != 2 {
		t.Errorf("CredentialLimiterCount = %d, want 2", rl.CredentialLimiterCount())
	}
}

func TestCredentialRateLimit_IgnoresOtherRequests(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    200,
		CredentialRate:  1,
		CredentialBurst: 1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.CredentialMiddleware("/api/v1/auth/login")(okHandler())

	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/farms", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/farms", nil),
	}
	for i, req := range requests {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     2,
		GeneralBurst:    5,
		CredentialRate:  1,
		CredentialBurst: 10,
		CleanupInterval: 50 * time.Millisecond, // テスト用に短く
	})
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestAs(9, http.MethodGet, "/api/v1/farms"))

	if rl.GeneralLimiterCount() == 0 {
		t.Fatal("expected at least one limiter entry")
	}

	// TTLは50ms * 2 = 100ms、200ms待てば削除されるはず
	time.Sleep(200 * time.Millisecond)

	if count := rl.GeneralLimiterCount(); count != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got %d", count)
	}
}

// --- デフォルト設定値のテスト ---

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2.0 { // 120/60 = 2
		t.Errorf("GeneralRate = %f, want 2.0", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.CredentialRate == 0 {
		t.Error("CredentialRate should not be 0")
	}
	if cfg.CredentialBurst != 10 {
		t.Errorf("CredentialBurst = %d, want 10", cfg.CredentialBurst)
	}
}
