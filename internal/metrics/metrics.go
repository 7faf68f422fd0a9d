// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// キャッシュ名ラベル
const (
	CacheSession   = "session"
	CacheUser      = "user"
	CacheBlacklist = "blacklist"
)

// 検証結果ラベル
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
	OutcomeRevoked = "revoked"
	OutcomeError   = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッションサービスやHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
	RecordValidation(outcome string)
	RecordSessionCreated()
	RecordRevocations(count int)
	RecordExpiredSwept(count int)
	RecordStoreLatency(op string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	validations     *prometheus.CounterVec
	sessionsCreated prometheus.Counter
	revocations     prometheus.Counter
	expiredSwept    prometheus.Counter
	storeLatency    *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduadmin_cache_hits_total",
			Help: "キャッシュヒットの合計数",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduadmin_cache_misses_total",
			Help: "キャッシュミスの合計数",
		}, []string{"cache"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduadmin_session_validations_total",
			Help: "結果別のセッション検証数",
		}, []string{"outcome"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eduadmin_sessions_created_total",
			Help: "作成されたセッションの合計数",
		}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eduadmin_session_revocations_total",
			Help: "ブラックリストに登録されたセッションの合計数",
		}),
		expiredSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eduadmin_sessions_expired_swept_total",
			Help: "定期クリーンアップで削除された期限切れセッションの合計数",
		}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eduadmin_store_latency_seconds",
			Help:    "永続化ストア呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eduadmin_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.validations,
		c.sessionsCreated,
		c.revocations,
		c.expiredSwept,
		c.storeLatency,
		c.httpStatus,
	)

	return c
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(cache string) {
	c.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(cache string) {
	c.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordValidation はセッション検証の結果を記録する。
func (c *Collector) RecordValidation(outcome string) {
	c.validations.WithLabelValues(outcome).Inc()
}

// RecordSessionCreated はセッション作成を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordRevocations はブラックリスト登録数を記録する。
func (c *Collector) RecordRevocations(count int) {
	c.revocations.Add(float64(count))
}

// RecordExpiredSwept は期限切れセッションの削除数を記録する。
func (c *Collector) RecordExpiredSwept(count int) {
	c.expiredSwept.Add(float64(count))
}

// RecordStoreLatency は永続化ストア呼び出しのレイテンシを記録する。
func (c *Collector) RecordStoreLatency(op string, duration time.Duration) {
	c.storeLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordCacheHit(string)                    {}
func (Nop) RecordCacheMiss(string)                   {}
func (Nop) RecordValidation(string)                  {}
func (Nop) RecordSessionCreated()                    {}
func (Nop) RecordRevocations(int)                    {}
func (Nop) RecordExpiredSwept(int)                   {}
func (Nop) RecordStoreLatency(string, time.Duration) {}
func (Nop) RecordHTTPStatus(int)                     {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
