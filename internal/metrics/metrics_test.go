package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) (float64, bool) {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue(), true
		}
	}
	return 0, false
}

// TestRecordSummaryGenerated_IncrementsCounter は生成成功カウンタが増加することを検証する。
func TestRecordSummaryGenerated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSummaryGenerated()
	c.RecordSummaryGenerated()

	val, found := counterValue(t, reg, "studylog_summary_generated_total")
	if !found {
		t.Fatal("studylog_summary_generated_total metric not found")
	}
	if val != 2 {
		t.Errorf("summary_generated_total = %v, want 2", val)
	}
}

// TestRecordSummaryFailed_IncrementsCounter は生成失敗カウンタが増加することを検証する。
func TestRecordSummaryFailed_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSummaryFailed()

	val, found := counterValue(t, reg, "studylog_summary_failed_total")
	if !found {
		t.Fatal("studylog_summary_failed_total metric not found")
	}
	if val != 1 {
		t.Errorf("summary_failed_total = %v, want 1", val)
	}
}

// TestRecordSummarySkipped_IncrementsCounterWithLabel はスキップカウンタが理由ラベル付きで増加することを検証する。
func TestRecordSummarySkipped_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSummarySkipped("no_data")
	c.RecordSummarySkipped("no_data")
	c.RecordSummarySkipped("already_done")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "studylog_summary_skipped_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "no_data":
					if val != 2 {
						t.Errorf("summary_skipped_total{reason=no_data} = %v, want 2", val)
					}
				case "already_done":
					if val != 1 {
						t.Errorf("summary_skipped_total{reason=already_done} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("studylog_summary_skipped_total metric not found")
	}
}

// TestRecordGenerationLatency_ObservesHistogram は生成レイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordGenerationLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGenerationLatency(100 * time.Millisecond)
	c.RecordGenerationLatency(2 * time.Second)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "studylog_summary_generation_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("studylog_summary_generation_latency_seconds metric not found")
	}
}

// TestRecordMalformedRecords_AddsCount は不正レコードカウンタが加算されることを検証する。
func TestRecordMalformedRecords_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMalformedRecords(3)
	c.RecordMalformedRecords(0) // 0は加算しない
	c.RecordMalformedRecords(2)

	val, found := counterValue(t, reg, "studylog_malformed_records_skipped_total")
	if !found {
		t.Fatal("studylog_malformed_records_skipped_total metric not found")
	}
	if val != 5 {
		t.Errorf("malformed_records_skipped_total = %v, want 5", val)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSummaryGenerated()
	c.RecordSummaryFailed()
	c.RecordSweepDuration(3 * time.Second)
	c.RecordExportRequest()

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"studylog_summary_generated_total",
		"studylog_summary_failed_total",
		"studylog_sweep_duration_seconds",
		"studylog_export_requests_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSummaryGenerated()

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "studylog_summary_generated_total") {
		t.Error("response should contain studylog_summary_generated_total metric")
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}
