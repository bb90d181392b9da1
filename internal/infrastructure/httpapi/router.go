package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/metrics"
	"github.com/medeiros-dev/reservation-notifier/internal/usecases/inspect"
	"github.com/medeiros-dev/reservation-notifier/internal/usecases/sendnotification"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter wires the public API, /metrics and /healthz.
func NewRouter(serviceName string, send *sendnotification.SendNotificationHandler, views *inspect.Handlers) *gin.Engine {
	srv := gin.New()
	srv.Use(gin.Recovery())
	srv.Use(otelgin.Middleware(serviceName))
	srv.Use(requestMetrics())

	api := srv.Group("/api/v1")
	api.POST("/notifications", send.Handle)
	views.Register(api)

	srv.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))
	srv.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return srv
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		if endpoint == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		metrics.HttpRequestsTotal.WithLabelValues(endpoint, http.StatusText(status)).Inc()
		metrics.HttpRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
