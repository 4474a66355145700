package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "accounts_http_requests_total", Help: "Account API requests by route, status and caller role"},
		[]string{"route", "method", "status", "role"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accounts_http_request_duration_seconds",
			Help:    "Account API latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"},
	)
)

func init() { prometheus.MustRegister(httpReqTotal, httpLatency) }

// Metrics records every request except /health and /metrics. role is the
// authenticated caller's role, or "anonymous" when AuthJWT did not accept one.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		switch route {
		case "/health", "/metrics":
			return
		case "":
			// 未匹配路由统一归档，避免 label 基数爆炸
			route = "unmatched"
		}
		role := string(CallerFrom(c).Role)
		if role == "" {
			role = "anonymous"
		}
		httpReqTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status()), role).Inc()
		httpLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
