package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/hitoshi/agrisense/internal/database"
	"github.com/hitoshi/agrisense/internal/middleware"
)

const (
	// LoginPath は資格情報交換ステージが処理するログインエンドポイント。
	LoginPath         = "/api/v1/auth/login"
	createAccountPath = "/api/v1/auth/create-account"
	refreshPath       = "/api/v1/auth/refresh"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// 認証パイプライン
	Resolver       middleware.PrincipalResolver
	Exchanger      middleware.CredentialExchanger
	PublicPatterns []string // nilの場合は middleware.DefaultPublicPatterns

	// ミドルウェア依存
	CORSAllowedOrigin string
	TrustProxyHeaders bool // trueの場合X-Forwarded-For/X-Real-IPをクライアントIPとして扱う
	RateLimiter       *middleware.RateLimiter
	AuthMetrics       middleware.AuthMetrics
	RequestObserver   middleware.RequestObserver
	MetricsHandler    http.Handler
	HealthChecker     database.Pinger

	// サービス
	AuthService       AuthServiceInterface
	FarmService       FarmServiceInterface
	SensorService     SensorServiceInterface
	AlertService      AlertServiceInterface
	WeatherService    WeatherServiceInterface
	PredictionService PredictionServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit(Credential)
//	→ TokenVerification → Authorization → CredentialExchange → RateLimit(General)
//
// 公開パスの判定は Authorization ステージが行い、ルート定義側では区別しない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	patterns := deps.PublicPatterns
	if patterns == nil {
		patterns = middleware.DefaultPublicPatterns
	}

	policy := middleware.NewPolicy(patterns, logger, deps.AuthMetrics)

	r := chi.NewRouter()

	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.RequestObserver))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.CredentialMiddleware(LoginPath, createAccountPath, refreshPath))
	}
	r.Use(policy.Pipeline(middleware.Stages{
		Verification:       middleware.NewTokenVerificationMiddleware(deps.Resolver, policy, logger, deps.AuthMetrics),
		CredentialExchange: middleware.NewCredentialExchangeMiddleware(LoginPath, deps.Exchanger, logger, deps.AuthMetrics),
	}))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.GeneralMiddleware())
	}

	// --- 運用エンドポイント ---
	health := NewHealthHandler(deps.HealthChecker)
	r.Get("/healthz", health.Health)
	r.Get("/actuator/health", health.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Get("/v3/api-docs", APIDocs)
	r.Get("/swagger-ui/*", httpSwagger.Handler(httpSwagger.URL("/v3/api-docs")))
	r.Get("/swagger-ui.html", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger-ui/index.html", http.StatusMovedPermanently)
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthMetrics, logger)
	farmHandler := NewFarmHandler(deps.FarmService)
	sensorHandler := NewSensorHandler(deps.SensorService)
	alertHandler := NewAlertHandler(deps.AlertService)
	insightHandler := NewInsightHandler(deps.WeatherService, deps.PredictionService)

	r.Route("/api/v1", func(r chi.Router) {
		// 認証（ログインは資格情報交換ステージが処理する）
		r.Route("/auth", func(r chi.Router) {
			r.Post("/create-account", authHandler.CreateAccount)
			r.Post("/refresh", authHandler.Refresh)
			r.Get("/me", authHandler.Me)
		})

		// 圃場管理
		r.Route("/farms", func(r chi.Router) {
			r.Get("/", farmHandler.ListFarms)
			r.Post("/", farmHandler.CreateFarm)
			r.Get("/soil", insightHandler.Soil)

			r.Route("/{farmId}", func(r chi.Router) {
				r.Get("/", farmHandler.GetFarm)
				r.Put("/", farmHandler.UpdateFarm)
				r.Delete("/", farmHandler.DeleteFarm)

				r.Get("/sensor-data", sensorHandler.ListReadings)
				r.Get("/sensor-data/latest", sensorHandler.LatestReading)
				r.Get("/alerts", alertHandler.ListAlerts)
				r.Get("/weather", insightHandler.Weather)
				r.Get("/prediction", insightHandler.Prediction)
				r.Get("/simulate", insightHandler.Simulate)
			})
		})

		r.Post("/sensor-data", sensorHandler.RecordReading)
		r.Post("/alerts/sms", alertHandler.SendSMS)
	})

	return r
}
