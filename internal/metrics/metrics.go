// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordSummaryGenerated()
	RecordSummaryFailed()
	RecordSummarySkipped(reason string)
	RecordGenerationLatency(duration time.Duration)
	RecordSweepDuration(duration time.Duration)
	RecordMalformedRecords(count int)
	RecordExportRequest()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	summaryGenerated  prometheus.Counter
	summaryFailed     prometheus.Counter
	summarySkipped    *prometheus.CounterVec
	generationLatency prometheus.Histogram
	sweepDuration     prometheus.Histogram
	malformedRecords  prometheus.Counter
	exportRequests    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		summaryGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_summary_generated_total",
			Help: "生成に成功した週次要約の合計数",
		}),
		summaryFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_summary_failed_total",
			Help: "生成に失敗した週次要約の合計数",
		}),
		summarySkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studylog_summary_skipped_total",
			Help: "スキップした週次要約の合計数（理由別）",
		}, []string{"reason"}),
		generationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studylog_summary_generation_latency_seconds",
			Help:    "要約生成1件のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studylog_sweep_duration_seconds",
			Help:    "週次スイープ1サイクルの所要時間（秒）",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		}),
		malformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_malformed_records_skipped_total",
			Help: "集計から除外された不正レコードの合計数",
		}),
		exportRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studylog_export_requests_total",
			Help: "エクスポートリクエストの合計数",
		}),
	}

	reg.MustRegister(
		c.summaryGenerated,
		c.summaryFailed,
		c.summarySkipped,
		c.generationLatency,
		c.sweepDuration,
		c.malformedRecords,
		c.exportRequests,
	)

	return c
}

// RecordSummaryGenerated は要約生成の成功を記録する。
func (c *Collector) RecordSummaryGenerated() {
	c.summaryGenerated.Inc()
}

// RecordSummaryFailed は要約生成の失敗を記録する。
func (c *Collector) RecordSummaryFailed() {
	c.summaryFailed.Inc()
}

// RecordSummarySkipped は要約生成のスキップを理由付きで記録する。
// reasonは "no_data" / "already_done" / "backoff" など。
func (c *Collector) RecordSummarySkipped(reason string) {
	c.summarySkipped.WithLabelValues(reason).Inc()
}

// RecordGenerationLatency は要約生成1件のレイテンシを記録する。
func (c *Collector) RecordGenerationLatency(duration time.Duration) {
	c.generationLatency.Observe(duration.Seconds())
}

// RecordSweepDuration はスイープ1サイクルの所要時間を記録する。
func (c *Collector) RecordSweepDuration(duration time.Duration) {
	c.sweepDuration.Observe(duration.Seconds())
}

// RecordMalformedRecords は除外された不正レコード数を記録する。
func (c *Collector) RecordMalformedRecords(count int) {
	if count > 0 {
		c.malformedRecords.Add(float64(count))
	}
}

// RecordExportRequest はエクスポートリクエストを記録する。
func (c *Collector) RecordExportRequest() {
	c.exportRequests.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
