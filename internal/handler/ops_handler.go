package handler

import (
	_ "embed"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/agrisense/internal/database"
)

//go:embed openapi.json
var openAPIDocument []byte

const defaultHealthTimeout = 2 * time.Second

// HealthHandler はDB接続状態を含むヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	pinger  database.Pinger
	timeout time.Duration
}

// NewHealthHandler はHealthHandlerを生成する。pingerがnilの場合はDBの確認を省略する。
func NewHealthHandler(pinger database.Pinger) *HealthHandler {
	return &HealthHandler{pinger: pinger, timeout: defaultHealthTimeout}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// Health はサービスの稼働状態を返す。DBに接続できない場合は503を返す。
// GET /healthz, GET /actuator/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "UP"})
		return
	}

	if err := database.Ping(r.Context(), h.pinger, h.timeout); err != nil {
		slog.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "DOWN", Database: "DOWN"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "UP", Database: "UP"})
}

// APIDocs は埋め込みのOpenAPIドキュメントを返す。
// GET /v3/api-docs
func APIDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(openAPIDocument)
}
