package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// probePaths are scraped on a timer; successful hits log at trace level.
var probePaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// gatewayRequests records every request on m and logs it together with the
// gateway phase, engine readiness and live session count seen by src at the
// time the response was written.
func gatewayRequests(logger zerolog.Logger, src HealthSource, m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, status, elapsed)

		h := src.Health()
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError && route == "/ready":
			// not-ready answers are expected while paused or unloaded
			event = logger.Warn()
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		case probePaths[route]:
			event = logger.Trace()
		default:
			event = logger.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Str("client_ip", c.ClientIP()).
			Str("phase", h.Phase).
			Bool("engine_ready", h.Ready).
			Int("sessions", h.Sessions).
			Msg("health.request")
	}
}
