// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/judgelink/internal/model"
)

// Collector はPrometheusメトリクスを収集する実装。
// verify.Metrics と sweep.Metrics を満たす。
type Collector struct {
	sessionsStarted *prometheus.CounterVec
	verifyOutcomes  *prometheus.CounterVec
	sessionsSwept   prometheus.Counter
	judgeLatency    *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judgelink_sessions_started_total",
			Help: "開始された検証セッションの合計数",
		}, []string{"platform"}),
		verifyOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judgelink_verify_outcomes_total",
			Help: "検証試行の結果別合計数",
		}, []string{"platform", "status"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "judgelink_sessions_swept_total",
			Help: "スイープで削除された期限切れセッションの合計数",
		}),
		judgeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "judgelink_judge_latency_seconds",
			Help:    "ジャッジ問い合わせのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judgelink_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.sessionsStarted,
		c.verifyOutcomes,
		c.sessionsSwept,
		c.judgeLatency,
		c.httpStatus,
	)

	return c
}

// RecordSessionStarted は検証セッションの開始を記録する。
func (c *Collector) RecordSessionStarted(platform model.Platform) {
	c.sessionsStarted.WithLabelValues(string(platform)).Inc()
}

// RecordVerifyOutcome は検証試行の結果を記録する。
func (c *Collector) RecordVerifyOutcome(platform model.Platform, status string) {
	c.verifyOutcomes.WithLabelValues(string(platform), status).Inc()
}

// RecordSessionsSwept はスイープによる削除件数を記録する。
func (c *Collector) RecordSessionsSwept(count int64) {
	c.sessionsSwept.Add(float64(count))
}

// RecordJudgeLatency はジャッジ問い合わせのレイテンシを記録する。
func (c *Collector) RecordJudgeLatency(platform model.Platform, duration time.Duration) {
	c.judgeLatency.WithLabelValues(string(platform)).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
