package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/agrisense/internal/middleware"
	"github.com/hitoshi/agrisense/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限バイト数。
const maxRequestBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeRawJSON は上流サービスの応答JSONを加工せずに書き込む。
func writeRawJSON(w http.ResponseWriter, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// decodeJSON はリクエストボディをvにデコードする。失敗した場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "Failed to parse the request body.",
			Category: "validation",
			Action:   "Send a valid JSON body.",
		})
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.ErrorContext(r.Context(), "internal server error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidTimeRange, "INVALID_REQUEST":
		return http.StatusBadRequest
	case model.ErrCodeDuplicateAccount:
		return http.StatusConflict
	case model.ErrCodeSMSDeliveryFailed, model.ErrCodeUpstreamFailed:
		return http.StatusBadGateway
	case model.ErrCodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	}
	if strings.HasSuffix(apiErr.Code, "_NOT_FOUND") {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// requirePrincipal はコンテキストのPrincipalを返す。未認証の場合は401を書き込みnilを返す。
func requirePrincipal(w http.ResponseWriter, r *http.Request) *model.Principal {
	p, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		middleware.WriteAuthFailure(w)
		return nil
	}
	return p
}
