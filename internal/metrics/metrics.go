// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/agrisense/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthSuccess(stage string)
	RecordAuthFailure(stage string, kind model.AuthFailureKind)
	ObserveRequest(method, route string, status int, duration time.Duration)
	RecordSensorReadingIngested(farmID string)
	RecordSMSSent(status model.AlertStatus)
	RecordOutboundCall(service string, duration time.Duration, err error)
	RecordSensorReadingsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authSuccess     *prometheus.CounterVec
	authFailure     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	sensorIngested  prometheus.Counter
	smsSent         *prometheus.CounterVec
	outboundLatency *prometheus.HistogramVec
	outboundErrors  *prometheus.CounterVec
	readingsPurged  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_auth_success_total",
			Help: "認証パイプラインのステージ別成功数",
		}, []string{"stage"}),
		authFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_auth_failure_total",
			Help: "認証パイプラインのステージ・種別ごとの失敗数",
		}, []string{"stage", "kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_http_requests_total",
			Help: "ルートとステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agrisense_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sensorIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agrisense_sensor_readings_ingested_total",
			Help: "登録されたセンサーデータの合計数",
		}),
		smsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_sms_sent_total",
			Help: "送信結果別のSMSアラート数",
		}, []string{"status"}),
		outboundLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agrisense_outbound_request_duration_seconds",
			Help:    "外部サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		outboundErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agrisense_outbound_errors_total",
			Help: "外部サービス呼び出しの失敗数",
		}, []string{"service"}),
		readingsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agrisense_sensor_readings_purged_total",
			Help: "保持期間を過ぎて削除されたセンサーデータの合計数",
		}),
	}

	reg.MustRegister(
		c.authSuccess,
		c.authFailure,
		c.httpRequests,
		c.httpDuration,
		c.sensorIngested,
		c.smsSent,
		c.outboundLatency,
		c.outboundErrors,
		c.readingsPurged,
	)

	return c
}

// RecordAuthSuccess は認証ステージの成功を記録する。
func (c *Collector) RecordAuthSuccess(stage string) {
	c.authSuccess.WithLabelValues(stage).Inc()
}

// RecordAuthFailure は認証ステージの失敗を種別付きで記録する。
func (c *Collector) RecordAuthFailure(stage string, kind model.AuthFailureKind) {
	c.authFailure.WithLabelValues(stage, string(kind)).Inc()
}

// ObserveRequest はHTTPリクエストの件数と処理時間を記録する。
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSensorReadingIngested はセンサーデータの登録を記録する。
func (c *Collector) RecordSensorReadingIngested(farmID string) {
	c.sensorIngested.Inc()
}

// RecordSMSSent はSMSアラートの送信結果を記録する。
func (c *Collector) RecordSMSSent(status model.AlertStatus) {
	c.smsSent.WithLabelValues(string(status)).Inc()
}

// RecordOutboundCall は外部サービス呼び出しのレイテンシと失敗を記録する。
func (c *Collector) RecordOutboundCall(service string, duration time.Duration, err error) {
	c.outboundLatency.WithLabelValues(service).Observe(duration.Seconds())
	if err != nil {
		c.outboundErrors.WithLabelValues(service).Inc()
	}
}

// RecordSensorReadingsPurged は削除されたセンサーデータ数を記録する。
func (c *Collector) RecordSensorReadingsPurged(count int64) {
	c.readingsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordAuthSuccess(string) {}
func (Nop) RecordAuthFailure(string, model.AuthFailureKind) {}
func (Nop) ObserveRequest(string, string, int, time.Duration) {}
func (Nop) RecordSensorReadingIngested(string) {}
func (Nop) RecordSMSSent(model.AlertStatus) {}
func (Nop) RecordOutboundCall(string, time.Duration, error) {}
func (Nop) RecordSensorReadingsPurged(int64) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
