package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/agrisense/internal/middleware"
	"github.com/hitoshi/agrisense/internal/model"
)

type recordingAuthMetrics struct {
	successes []string
	failures  []model.AuthFailureKind
}

func (m *recordingAuthMetrics) RecordAuthSuccess(stage string) { m.successes = append(m.successes, stage) }

func (m *recordingAuthMetrics) RecordAuthFailure(stage string, kind model.AuthFailureKind) {
	m.failures = append(m.failures, kind)
}

func TestAuthHandler_CreateAccount_Success(t *testing.T) {
	svc := &mockAuthService{registerFn: func(ctx context.Context, in model.RegisterInput) (*model.Account, error) {
		if in.PhoneNumber != "+15550001" || in.Password != "Secret123!" {
			t.Errorf("unexpected input: %+v", in)
		}
		return &model.Account{
			ID: 1, FirstName: in.FirstName, LastName: in.LastName, PhoneNumber: in.PhoneNumber,
			PasswordHash: "$2a$10$hash", CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		}, nil
	}}
	h := NewAuthHandler(svc, nil, nil)

	body := `{"firstName":"Amina","lastName":"Otieno","phoneNumber":"+15550001","password":"Secret123!"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/create-account", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.CreateAccount(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("hash")) {
		t.Error("response must not contain the password hash")
	}
	var got map[string]any
	json.NewDecoder(w.Body).Decode(&got)
	if got["phoneNumber"] != "+15550001" || got["firstName"] != "Amina" {
		t.Errorf("unexpected body: %v", got)
	}
}

func TestAuthHandler_CreateAccount_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"malformed", `{`, nil, http.StatusBadRequest},
		{"validation", `{"phoneNumber":""}`, model.NewValidationError("phoneNumber is required"), http.StatusBadRequest},
		{"duplicate", `{"phoneNumber":"+15550001","password":"Secret123!"}`, model.NewDuplicateAccountError(), http.StatusConflict},
		{"store", `{"phoneNumber":"+15550001","password":"Secret123!"}`, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{registerFn: func(ctx context.Context, in model.RegisterInput) (*model.Account, error) {
				return nil, tt.err
			}}
			h := NewAuthHandler(svc, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/create-account", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.CreateAccount(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthHandler_Refresh_Success(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := &mockAuthService{refreshFn: func(ctx context.Context, raw string) (*model.TokenGrant, error) {
		if raw != "refresh-token" {
			t.Errorf("raw = %q", raw)
		}
		return &model.TokenGrant{AccessToken: "new-access", IssuedAt: issued, AccessExpiresAt: issued.Add(15 * time.Minute)}, nil
	}}
	metrics := &recordingAuthMetrics{}
	h := NewAuthHandler(svc, metrics, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewBufferString(`{"refreshToken":"refresh-token"}`))
	w := httptest.NewRecorder()
	h.Refresh(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body middleware.TokenResponseBody
	json.NewDecoder(w.Body).Decode(&body)
	if body.AccessToken != "new-access" || body.ExpiresIn != 900 || body.TokenType != "Bearer" {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.RefreshToken != "" {
		t.Error("refresh must not rotate the refresh token")
	}
	if len(metrics.successes) != 1 || metrics.successes[0] != middleware.StageRefresh {
		t.Errorf("successes = %v", metrics.successes)
	}
}

func TestAuthHandler_Refresh_Failures(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantKind   model.AuthFailureKind
	}{
		{"malformed body", `not json`, nil, http.StatusUnauthorized, model.AuthMalformedRequest},
		{"empty token", `{"refreshToken":""}`, nil, http.StatusUnauthorized, model.AuthMalformedRequest},
		{"expired", `{"refreshToken":"x"}`, model.NewAuthFailure(model.AuthTokenExpired, nil), http.StatusUnauthorized, model.AuthTokenExpired},
		{"access token presented", `{"refreshToken":"x"}`, model.NewAuthFailure(model.AuthTokenInvalid, nil), http.StatusUnauthorized, model.AuthTokenInvalid},
		{"store fault", `{"refreshToken":"x"}`, errors.New("db down"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{refreshFn: func(ctx context.Context, raw string) (*model.TokenGrant, error) {
				return nil, tt.err
			}}
			metrics := &recordingAuthMetrics{}
			h := NewAuthHandler(svc, metrics, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.Refresh(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body middleware.AuthErrorBody
			json.NewDecoder(w.Body).Decode(&body)
			if body.Status != tt.wantStatus {
				t.Errorf("body status = %d, want %d", body.Status, tt.wantStatus)
			}
			if tt.wantKind != "" && (len(metrics.failures) != 1 || metrics.failures[0] != tt.wantKind) {
				t.Errorf("failures = %v, want [%s]", metrics.failures, tt.wantKind)
			}
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, nil)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), testPrincipal)
	w := httptest.NewRecorder()
	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got accountView
	json.NewDecoder(w.Body).Decode(&got)
	if got.ID != 7 || got.PhoneNumber != "+15550001" || got.FirstName != "Amina" {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestAuthHandler_Me_Anonymous(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, nil, nil)

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
