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
// HTTPミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordEntryCreated()
	RecordReportLatency(report string, duration time.Duration)
	RecordOTPIssued()
	RecordCleanupDeleted(target string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	entriesCreated prometheus.Counter
	reportLatency  *prometheus.HistogramVec
	otpIssued      prometheus.Counter
	cleanupDeleted *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tpodo_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tpodo_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		entriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tpodo_entries_created_total",
			Help: "作成された作業記録の合計数",
		}),
		reportLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tpodo_report_duration_seconds",
			Help:    "レポート集計の処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
		otpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tpodo_otp_issued_total",
			Help: "発行された確認コードの合計数",
		}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tpodo_cleanup_deleted_total",
			Help: "クリーンアップで削除された行数",
		}, []string{"target"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.entriesCreated,
		c.reportLatency,
		c.otpIssued,
		c.cleanupDeleted,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordEntryCreated は作業記録の作成を記録する。
func (c *Collector) RecordEntryCreated() {
	c.entriesCreated.Inc()
}

// RecordReportLatency はレポート種別ごとの集計時間を記録する。
func (c *Collector) RecordReportLatency(report string, duration time.Duration) {
	c.reportLatency.WithLabelValues(report).Observe(duration.Seconds())
}

// RecordOTPIssued は確認コードの発行を記録する。
func (c *Collector) RecordOTPIssued() {
	c.otpIssued.Inc()
}

// RecordCleanupDeleted はクリーンアップで削除した行数を記録する。
func (c *Collector) RecordCleanupDeleted(target string, count int64) {
	c.cleanupDeleted.WithLabelValues(target).Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わないテストやCLIで使用する。
type Nop struct{}

func (Nop) RecordHTTPStatus(int)                      {}
func (Nop) RecordRequestLatency(time.Duration)        {}
func (Nop) RecordEntryCreated()                       {}
func (Nop) RecordReportLatency(string, time.Duration) {}
func (Nop) RecordOTPIssued()                          {}
func (Nop) RecordCleanupDeleted(string, int64)        {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
