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
// Coordinatorやワーカーから利用する。
type MetricsCollector interface {
	RecordCacheHit(platform string)
	RecordCacheMiss(platform string)
	RecordRemoteFetch(platform string, result string)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordSnapshotsExpired(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHit         *prometheus.CounterVec
	cacheMiss        *prometheus.CounterVec
	remoteFetch      *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	fetchLatency     prometheus.Histogram
	snapshotsExpired prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendlens_cache_hit_total",
			Help: "有効なキャッシュから応答した回数",
		}, []string{"platform"}),
		cacheMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendlens_cache_miss_total",
			Help: "キャッシュが不在・期限切れ・強制更新でリモート取得した回数",
		}, []string{"platform"}),
		remoteFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendlens_remote_fetch_total",
			Help: "リモート取得の結果別の回数",
		}, []string{"platform", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendlens_http_status_total",
			Help: "取得元が返した2xx以外のHTTPステータスコード別の応答数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trendlens_fetch_latency_seconds",
			Help:    "リモート取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		snapshotsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendlens_snapshots_expired_total",
			Help: "期限切れで削除したスナップショットの合計数",
		}),
	}

	reg.MustRegister(
		c.cacheHit,
		c.cacheMiss,
		c.remoteFetch,
		c.httpStatus,
		c.fetchLatency,
		c.snapshotsExpired,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(platform string) {
	c.cacheHit.WithLabelValues(platform).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(platform string) {
	c.cacheMiss.WithLabelValues(platform).Inc()
}

// RecordRemoteFetch はリモート取得の結果を記録する。
func (c *Collector) RecordRemoteFetch(platform string, result string) {
	c.remoteFetch.WithLabelValues(platform, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はリモート取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordSnapshotsExpired は削除したスナップショット数を記録する。
func (c *Collector) RecordSnapshotsExpired(count int) {
	c.snapshotsExpired.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// APIサーバーを持たないworkerプロセスで使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
