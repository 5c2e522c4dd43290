// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// Auth Gateway、ブートストラップ、カタログ、ダッシュボードから利用する。
type MetricsCollector interface {
	RecordGatewayCall(operation, outcome string, duration time.Duration)
	RecordBackendStatus(statusCode int)
	RecordBootstrap(outcome string)
	RecordCatalogFetch(success bool, courses int, duration time.Duration)
	RecordNameUpdate(outcome string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	backendStatus  *prometheus.CounterVec
	bootstrap      *prometheus.CounterVec
	catalogFetch   *prometheus.CounterVec
	catalogLatency prometheus.Histogram
	catalogCourses prometheus.Gauge
	nameUpdates    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_gateway_calls_total",
			Help: "Auth Gatewayからバックエンドへの呼び出し数",
		}, []string{"operation", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnhub_gateway_latency_seconds",
			Help:    "Auth Gateway呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_backend_status_total",
			Help: "バックエンドのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		bootstrap: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_bootstrap_total",
			Help: "セッションブートストラップの結果別の実行数",
		}, []string{"outcome"}),
		catalogFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_catalog_fetch_total",
			Help: "コースカタログ取得の結果別の実行数",
		}, []string{"outcome"}),
		catalogLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "learnhub_catalog_fetch_latency_seconds",
			Help:    "コースカタログ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		catalogCourses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "learnhub_catalog_courses",
			Help: "キャッシュされているコース数",
		}),
		nameUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_display_name_updates_total",
			Help: "表示名更新の結果別の実行数",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.gatewayCalls,
		c.gatewayLatency,
		c.backendStatus,
		c.bootstrap,
		c.catalogFetch,
		c.catalogLatency,
		c.catalogCourses,
		c.nameUpdates,
	)

	return c
}

// RecordGatewayCall はAuth Gateway呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordGatewayCall(operation, outcome string, duration time.Duration) {
	c.gatewayCalls.WithLabelValues(operation, outcome).Inc()
	c.gatewayLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBackendStatus はバックエンドのHTTPステータスコードを記録する。
func (c *Collector) RecordBackendStatus(statusCode int) {
	c.backendStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBootstrap はブートストラップの結果を記録する。
func (c *Collector) RecordBootstrap(outcome string) {
	c.bootstrap.WithLabelValues(outcome).Inc()
}

// RecordCatalogFetch はカタログ取得の結果を記録する。失敗時はコース数を更新しない。
func (c *Collector) RecordCatalogFetch(success bool, courses int, duration time.Duration) {
	c.catalogLatency.Observe(duration.Seconds())
	if !success {
		c.catalogFetch.WithLabelValues("failure").Inc()
		return
	}
	c.catalogFetch.WithLabelValues("success").Inc()
	c.catalogCourses.Set(float64(courses))
}

// RecordNameUpdate は表示名更新の結果を記録する。
func (c *Collector) RecordNameUpdate(outcome string) {
	c.nameUpdates.WithLabelValues(outcome).Inc()
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordGatewayCall(string, string, time.Duration) {}
func (NopCollector) RecordBackendStatus(int) {}
func (NopCollector) RecordBootstrap(string) {}
func (NopCollector) RecordCatalogFetch(bool, int, time.Duration) {}
func (NopCollector) RecordNameUpdate(string) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
