package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Health is the gateway state exposed on /health and /ready.
type Health struct {
	Phase       string `json:"phase"`
	Ready       bool   `json:"ready"`
	Sessions    int    `json:"sessions"`
	Environment string `json:"environment"`
	Direction   string `json:"direction"`
	Tokens      int    `json:"tokens"`
}

// HealthSource reports current gateway health.
type HealthSource interface {
	Health() Health
}

// HealthFunc adapts a function into a HealthSource.
type HealthFunc func() Health

func (f HealthFunc) Health() Health {
	return f()
}

const shutdownTimeout = 5 * time.Second

// NewRouter builds the health/readiness/metrics HTTP surface.
func NewRouter(src HealthSource, m *Metrics, origins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	startedAt := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gatewayRequests(log.Logger, src, m))
	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		h := src.Health()
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"service": "atlasgate",
			"gateway": h,
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		h := src.Health()
		status := http.StatusOK
		if !h.Ready || h.Phase != "running" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))
	return r
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("health listen %s: %w", addr, err)
	}
	return ServeListener(ctx, ln, handler)
}

func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("health.listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("health shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
