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
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordArticleCreated(category string)
	RecordArticleUpdated(category string)
	RecordSaveRejected(reason string)
	RecordUpload(backend, result string)
	RecordDraftWrite(store string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(route string, duration time.Duration)
}

// 保存拒否の理由ラベル
const (
	RejectInvalid   = "invalid"
	RejectDuplicate = "duplicate"
	RejectForbidden = "forbidden"
	RejectNotFound  = "not_found"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	articlesCreated *prometheus.CounterVec
	articlesUpdated *prometheus.CounterVec
	saveRejected    *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	draftWrites     *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		articlesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_articles_created_total",
			Help: "作成された記事の合計数",
		}, []string{"category"}),
		articlesUpdated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_articles_updated_total",
			Help: "更新された記事の合計数",
		}, []string{"category"}),
		saveRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_article_save_rejected_total",
			Help: "拒否された記事保存リクエストの理由別の数",
		}, []string{"reason"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_uploads_total",
			Help: "画像アップロードのバックエンド・結果別の数",
		}, []string{"backend", "result"}),
		draftWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_draft_writes_total",
			Help: "下書き保存の合計数",
		}, []string{"store"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blog_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.articlesCreated,
		c.articlesUpdated,
		c.saveRejected,
		c.uploads,
		c.draftWrites,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordArticleCreated は記事の作成を記録する。
func (c *Collector) RecordArticleCreated(category string) {
	c.articlesCreated.WithLabelValues(category).Inc()
}

// RecordArticleUpdated は記事の更新を記録する。
func (c *Collector) RecordArticleUpdated(category string) {
	c.articlesUpdated.WithLabelValues(category).Inc()
}

// RecordSaveRejected は記事保存の拒否を記録する。
func (c *Collector) RecordSaveRejected(reason string) {
	c.saveRejected.WithLabelValues(reason).Inc()
}

// RecordUpload は画像アップロードの結果を記録する。resultは"ok"または"error"。
func (c *Collector) RecordUpload(backend, result string) {
	c.uploads.WithLabelValues(backend, result).Inc()
}

// RecordDraftWrite は下書きの保存を記録する。
func (c *Collector) RecordDraftWrite(store string) {
	c.draftWrites.WithLabelValues(store).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はルートパターンごとのリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(route string, duration time.Duration) {
	c.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*Collector)(nil)
