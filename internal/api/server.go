// Package api serves the local request surface: capture, queue
// management, monitor listing and screenshot settings.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/breeze-rmm/snapshot-agent/internal/desktop"
	"github.com/breeze-rmm/snapshot-agent/internal/logging"
	"github.com/breeze-rmm/snapshot-agent/internal/queue"
)

var log = logging.L("api")

// MonitorLister is implemented by *desktop.Catalog.
type MonitorLister interface {
	ListMonitors(ctx context.Context) []desktop.Monitor
}

// SelectorStore is implemented by *config.Store.
type SelectorStore interface {
	SelectedMonitor() desktop.Selector
	SetSelectedMonitor(desktop.Selector) error
}

type Deps struct {
	Manager  *queue.Manager
	Monitors MonitorLister
	Settings SelectorStore
	Hooks    queue.Hooks
	Hub      *Hub
}

type Server struct {
	deps   Deps
	engine *gin.Engine
}

func NewServer(deps Deps) *Server {
	if deps.Hub == nil {
		deps.Hub = NewHub()
	}
	s := &Server{deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	v1 := r.Group("/api/v1", localOnly())
	v1.POST("/screenshots", s.takeScreenshot)
	v1.GET("/screenshots", s.listScreenshots)
	v1.DELETE("/screenshots", s.deleteScreenshot)
	v1.POST("/screenshots/reset", s.resetQueues)
	v1.GET("/monitors", s.listMonitors)
	v1.GET("/config/screenshot", s.getScreenshotConfig)
	v1.PUT("/config/screenshot", s.putScreenshotConfig)
	v1.GET("/view", s.getView)
	v1.PUT("/view", s.putView)
	v1.GET("/events", deps.Hub.serveWS)

	s.engine = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rl := log.With("requestId", uuid.NewString()[:8])
		c.Request = c.Request.WithContext(logging.NewContext(c.Request.Context(), rl))
		c.Next()
		rl.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			logging.KeyDurationMs, time.Since(start).Milliseconds())
	}
}

// localOnly rejects requests sent by web pages from other origins.
// Browsers attach Origin to cross-site POST, PUT and DELETE requests, even
// the ones that skip CORS preflight.
func localOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !localOrigin(c.Request) {
			reqLog(c).Warn("rejected cross-origin request", "origin", c.GetHeader("Origin"))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cross-origin requests are not allowed"})
			return
		}
		c.Next()
	}
}

// reqLog returns the request-scoped logger set by requestLogger.
func reqLog(c *gin.Context) *slog.Logger {
	return logging.FromContext(c.Request.Context())
}
