package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/agrisense/internal/alert"
	"github.com/hitoshi/agrisense/internal/auth"
	"github.com/hitoshi/agrisense/internal/config"
	"github.com/hitoshi/agrisense/internal/database"
	"github.com/hitoshi/agrisense/internal/farm"
	"github.com/hitoshi/agrisense/internal/handler"
	"github.com/hitoshi/agrisense/internal/logger"
	"github.com/hitoshi/agrisense/internal/metrics"
	"github.com/hitoshi/agrisense/internal/middleware"
	"github.com/hitoshi/agrisense/internal/prediction"
	"github.com/hitoshi/agrisense/internal/repository"
	"github.com/hitoshi/agrisense/internal/security"
	"github.com/hitoshi/agrisense/internal/sensor"
	"github.com/hitoshi/agrisense/internal/token"
	"github.com/hitoshi/agrisense/internal/upstream"
	"github.com/hitoshi/agrisense/internal/weather"
	"github.com/hitoshi/agrisense/internal/worker/cleanup"
	"github.com/hitoshi/agrisense/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// signingKey は設定された署名鍵を復号する。未設定の場合は起動ごとに生成する。
func signingKey(cfg *config.Config) (token.SigningKey, error) {
	if cfg.JWTSigningKey != "" {
		return token.SigningKeyFromBase64(cfg.JWTSigningKey)
	}
	slog.Warn("JWT_SIGNING_KEY is not set; generated an ephemeral signing key, tokens will not survive restarts")
	return token.GenerateSigningKey()
}

// outboundClient は設定済みの上流サービスのみに接続できるHTTPクライアントを生成する。
func outboundClient(cfg *config.Config) (*http.Client, error) {
	upstreams := []string{cfg.WeatherAPIBaseURL, cfg.PredictionServiceURL}
	if twilioConfig(cfg).Configured() {
		upstreams = append(upstreams, cfg.TwilioBaseURL)
	}
	return security.NewOutboundClient(security.OutboundConfig{
		Timeout:      cfg.OutboundTimeout,
		Upstreams:    upstreams,
		TrustedCIDRs: cfg.TrustedCIDRs,
	})
}

func twilioConfig(cfg *config.Config) alert.TwilioConfig {
	return alert.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioPhoneNumber,
		BaseURL:    cfg.TwilioBaseURL,
	}
}

// newPredictionService は予測サービスのクライアントを構築する。URL未設定の場合は呼び出し先を持たない。
func newPredictionService(cfg *config.Config, db *sql.DB, httpClient *http.Client, farms *farm.Service, collector *metrics.Collector, log *slog.Logger) *prediction.Service {
	var caller *upstream.Client
	if cfg.PredictionServiceURL != "" {
		caller = upstream.NewClient("prediction", httpClient, log,
			upstream.WithRecorder(collector),
			upstream.WithMaxResponseSize(cfg.OutboundMaxSize),
		)
	}
	return prediction.NewService(caller, cfg.PredictionServiceURL,
		repository.NewPostgresPredictionRepo(db), farms, log)
}

// buildRouter は全依存関係をワイヤリングし、HTTPハンドラーを返す。
// dbへの接続はリクエスト処理時まで行われない。
func buildRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (http.Handler, error) {
	log := slog.Default()

	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. リポジトリ
	accountRepo := repository.NewPostgresAccountRepo(db)
	farmRepo := repository.NewPostgresFarmRepo(db)
	sensorRepo := repository.NewPostgresSensorReadingRepo(db)
	alertRepo := repository.NewPostgresAlertRepo(db)

	// 3. 認証
	key, err := signingKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare signing key: %w", err)
	}
	codec := token.NewCodec(key, token.WithTTL(cfg.AccessTokenTTL, cfg.RefreshTokenTTL))
	authService, err := auth.NewService(accountRepo, codec, auth.ServiceConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	// 4. 外部サービス
	httpClient, err := outboundClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build outbound client: %w", err)
	}

	sanitizer := security.NewTextSanitizer()
	farmService := farm.NewService(farmRepo, sanitizer)
	sensorService := sensor.NewService(sensorRepo, farmService, collector)

	weatherCaller := upstream.NewClient("weather", httpClient, log,
		upstream.WithRecorder(collector),
		upstream.WithMaxResponseSize(cfg.OutboundMaxSize),
	)
	weatherClient := weather.NewClient(weatherCaller, farmService, weather.Config{
		BaseURL: cfg.WeatherAPIBaseURL,
		APIKey:  cfg.WeatherAPIKey,
		PolyID:  cfg.WeatherPolyID,
	}, log)

	// SMS送信はPOSTのため再試行しない
	var sender alert.SMSSender
	if tc := twilioConfig(cfg); tc.Configured() {
		twilioCaller := upstream.NewClient("twilio", httpClient, log,
			upstream.WithRecorder(collector),
			upstream.WithMaxResponseSize(cfg.OutboundMaxSize),
			upstream.WithRetry(1, 0),
		)
		sender = alert.NewTwilioClient(twilioCaller, tc)
	} else {
		log.Warn("Twilio is not configured; SMS alerts will be rejected")
	}
	alertService := alert.NewService(alertRepo, farmService, sender, sanitizer, collector, log)

	predictionService := newPredictionService(cfg, db, httpClient, farmService, collector, log)

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))

	return handler.NewRouter(&handler.RouterDeps{
		Logger:    log,
		Resolver:  authService,
		Exchanger: authService,

		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		RateLimiter:       rateLimiter,
		AuthMetrics:       collector,
		RequestObserver:   collector,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     db,

		AuthService:       authService,
		FarmService:       farmService,
		SensorService:     sensorService,
		AlertService:      alertService,
		WeatherService:    weatherClient,
		PredictionService: predictionService,
	}), nil
}

// rateLimiterConfig はreq/min単位の設定値をreq/secに変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitLogin > 0 {
		rl.CredentialRate = rate.Limit(float64(cfg.RateLimitLogin) / 60.0)
		rl.CredentialBurst = cfg.RateLimitLogin
	}
	return rl
}

// newRegistry はプロセス情報とGoランタイム情報を含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	router, err := buildRouter(cfg, db, newRegistry())
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen failed: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// センサーデータのクリーンアップと予測の定期更新を実行する。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	log := slog.Default()
	collector := metrics.NewCollector(newRegistry())

	cleanupJob := cleanup.NewCleanupJob(db, log, collector, cfg.SensorRetentionDays)

	httpClient, err := outboundClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to build outbound client: %w", err)
	}
	farmService := farm.NewService(repository.NewPostgresFarmRepo(db), security.NewTextSanitizer())
	predictionService := newPredictionService(cfg, db, httpClient, farmService, collector, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("retention_days", cfg.SensorRetentionDays),
		slog.Duration("prediction_refresh_interval", cfg.PredictionRefreshInterval),
	)

	if predictionService.Configured() {
		scheduler := refresh.NewScheduler(farmService, predictionService, log, cfg.PredictionMaxConcurrent)
		go scheduler.Start(ctx, cfg.PredictionRefreshInterval)
	} else {
		slog.Warn("PREDICTION_SERVICE_URL is not set; prediction refresh is disabled")
	}

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, args []string) error {
	action, steps, err := ParseMigrateArgs(args)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("current migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully", slog.String("action", string(action)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
