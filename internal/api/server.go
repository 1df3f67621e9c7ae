// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/tamzrod/mra4-gateway/internal/alarm"
	"github.com/tamzrod/mra4-gateway/internal/control"
	"github.com/tamzrod/mra4-gateway/internal/device"
	"github.com/tamzrod/mra4-gateway/internal/history"
	"github.com/tamzrod/mra4-gateway/internal/logbuf"
	"github.com/tamzrod/mra4-gateway/internal/status"
)

// Poller is what the API needs from the poll loop.
type Poller interface {
	Device() device.Device
	RequestMode(mode device.Mode) error
}

// StatusSource hands out the current link status.
type StatusSource interface {
	Snapshot() status.Snapshot
}

// LogSource hands out recently recorded log lines.
type LogSource interface {
	Logs(debug bool, n int) []logbuf.Entry
}

// Deps are the collaborators behind the handlers. All but Logs are required.
type Deps struct {
	Poller    Poller
	Status    StatusSource
	History   *history.Buffer
	Control   *control.Dispatcher
	Evaluator alarm.Evaluator
	Logs      LogSource
}

// Server is the HTTP control surface.
type Server struct {
	Router *gin.Engine
	Listen string

	deps Deps
}

// NewRouter returns a gin engine with request logging and panic recovery.
func NewRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(logger(), gin.Recovery())
	return engine
}

// NewServer builds the router and installs every route.
func NewServer(listen string, deps Deps) *Server {
	s := &Server{
		Router: NewRouter(),
		Listen: listen,
		deps:   deps,
	}
	s.InstallHandlers()
	return s
}

func (s *Server) InstallHandlers() {
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.Router.Group("/api/v1")
	v1.GET("/snapshot", getSnapshot(s.deps))
	v1.GET("/history", getHistory(s.deps))
	v1.GET("/status", getStatus(s.deps))
	v1.GET("/cot/:code", getCOT())
	v1.GET("/logs", getLogs(s.deps))

	v1.POST("/coupling/unlock", unlockCoupling(s.deps))
	v1.DELETE("/coupling/unlock", lockCoupling(s.deps))
	v1.POST("/coupling/pulse", pulseCoupling(s.deps))
	v1.PUT("/coupling", writeCoupling(s.deps))
	v1.PUT("/fault-recording", writeFaultRecording(s.deps))

	v1.POST("/acknowledge", acknowledge(s.deps, device.Device.AcknowledgeAll))
	v1.POST("/acknowledge/device", acknowledge(s.deps, device.Device.AcknowledgeDevice))
	v1.POST("/acknowledge/trip-command", acknowledge(s.deps, device.Device.AcknowledgeTripCommand))

	v1.POST("/simulate/trip", simulateTrip(s.deps))
	v1.PUT("/mode", switchMode(s.deps))
}

// Serve starts listening in the background and returns the shutdown func.
func (s *Server) Serve() func(ctx context.Context) {
	srv := &http.Server{
		Addr:              s.Listen,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		klog.InfoS("HTTP API listening", "addr", s.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.ErrorS(err, "HTTP API stopped", "addr", s.Listen)
		}
	}()

	return func(ctx context.Context) {
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "HTTP API shutdown failed")
		}
	}
}

func logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		klog.V(4).InfoS("Received HTTP request",
			"verb", c.Request.Method,
			"URI", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
