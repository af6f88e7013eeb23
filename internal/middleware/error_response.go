package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/agrisense/internal/model"
)

// ErrorResponseBody はドメインエラーの応答本文。statusは認証失敗応答と同じくHTTPステータスを重ねて返す。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
	Status   int    `json:"status"`
}

// WriteErrorResponse はAPIErrorを指定ステータスで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Status:   statusCode,
	})
}

// WriteInternalServerError は500の一般的なエラー応答を書き込む。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// writeJSON はエラー系の応答本文を書き込む。エラー応答はキャッシュさせない。
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
