package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Pinger checks that the state store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves /healthz, /status and the pprof endpoints.
type Server struct {
	engine  *gin.Engine
	http    *http.Server
	monitor *Monitor
	db      Pinger
	log     *logrus.Entry
}

func NewServer(addr, mode string, monitor *Monitor, db Pinger, log *logrus.Entry) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		engine:  r,
		http:    &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second},
		monitor: monitor,
		db:      db,
		log:     log,
	}
	r.GET("/healthz", s.healthz)
	r.GET("/status", s.status)
	pprof.Register(r)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	s.log.Infof("Status server listening on %s", lis.Addr())
	go func() {
		if err := s.http.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Status server stopped")
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	snap := s.monitor.Snapshot()
	code := http.StatusOK
	if snap.Cycles > 0 && !snap.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, snap)
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("status request")
	}
}
