package middleware

import (
	"net/http"
	"time"

	"github.com/basedest/course-project/internal/metrics"
)

// NewMetricsMiddleware はHTTPステータスとルートごとのレイテンシを記録するミドルウェアを返す。
// ルートはchiのパターンで集計し、パスパラメータごとに系列が増えないようにする。
func NewMetricsMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if collector == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			collector.RecordHTTPStatus(rec.statusCode)
			collector.RecordRequestLatency(routePattern(r), time.Since(start))
		})
	}
}
