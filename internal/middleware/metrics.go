package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tuntasinaja/tuntasinaja/pkg/metrics"
)

const unmatchedRoute = "unmatched"

// Metrics records latency per route template. WebSocket upgrades are left
// out of the histogram since their duration is the lifetime of the stream.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isUpgrade(c) {
			c.Next()
			return
		}

		metrics.HTTPInFlight.Inc()
		start := time.Now()
		defer func() {
			metrics.HTTPInFlight.Dec()
			metrics.APILatency.
				WithLabelValues(c.Request.Method, routeLabel(c), strconv.Itoa(c.Writer.Status())).
				Observe(time.Since(start).Seconds())
		}()

		c.Next()
	}
}

// routeLabel uses the matched template so path parameters like class names
// and notification ids do not explode label cardinality.
func routeLabel(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return unmatchedRoute
}

func isUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}
