// Package server exposes the HTTP surface: snapshot reads, the tick
// stream upgrade endpoint, administrative family syncs, and health.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tomszi/quotefeed/internal/model"
	"github.com/tomszi/quotefeed/internal/registry"
	"github.com/tomszi/quotefeed/internal/syncer"
)

// Snapshotter serves batched point-in-time reads.
type Snapshotter interface {
	Snapshot(ctx context.Context, ids []string) []model.MarketTick
}

// Streamer serves live tick stream connections.
type Streamer interface {
	Handle(c *gin.Context)
	ActiveConns() int
}

// FamilySyncer refreshes whole instrument families.
type FamilySyncer interface {
	Sync(ctx context.Context, family string) (syncer.Result, error)
}

// Pinger reports backend health. Optional backends pass nil.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds HTTP server settings.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

// Server is the quotefeed HTTP server.
type Server struct {
	cfg       Config
	reg       *registry.Registry
	snaps     Snapshotter
	stream    Streamer
	sync      FamilySyncer
	db        Pinger
	redis     Pinger
	logger    *slog.Logger
	httpSrv   *http.Server
	startedAt time.Time
}

// New wires the router and handlers. db and redis may be nil when those
// backends are not configured; sync may be nil to disable the admin
// endpoint.
func New(
	cfg Config,
	reg *registry.Registry,
	snaps Snapshotter,
	stream Streamer,
	familySync FamilySyncer,
	db, redis Pinger,
	logger *slog.Logger,
) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		reg:       reg,
		snaps:     snaps,
		stream:    stream,
		sync:      familySync,
		db:        db,
		redis:     redis,
		logger:    logger,
		startedAt: time.Now(),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLog())

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	v1.GET("/snapshot", s.handleSnapshot)
	v1.GET("/stream", s.stream.Handle)
	v1.POST("/sync/:family", s.handleSync)

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpSrv.Addr)

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// requestLog logs one line per request.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// handleSnapshot serves GET /api/v1/snapshot?ids=A,B,C. Unknown ids are
// omitted from the result, not errors; results keep request order.
func (s *Server) handleSnapshot(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "ids is required"})
		return
	}

	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "ids is required"})
		return
	}

	ticks := s.snaps.Snapshot(c.Request.Context(), ids)
	if ticks == nil {
		ticks = []model.MarketTick{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": ticks})
}

// handleSync serves POST /api/v1/sync/:family. The sync runs in the
// background; the response only acknowledges that it started.
func (s *Server) handleSync(c *gin.Context) {
	if s.sync == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "sync is not configured"})
		return
	}

	family := c.Param("family")
	if _, err := s.reg.Family(family); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": fmt.Sprintf("%s (known families: %s)",
				err.Error(), strings.Join(registry.Families(), ", ")),
		})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.sync.Sync(ctx, family); err != nil {
			s.logger.Error("background sync failed", "family", family, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"success": true, "family": family})
}

// handleHealth reports process and backend health. Backend failures
// degrade the status but the endpoint still returns 200 so load
// balancers keep routing while only a sidecar store is down.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := gin.H{}

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			status = "degraded"
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			status = "degraded"
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"instruments":  s.reg.Len(),
		"active_conns": s.stream.ActiveConns(),
		"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
		"checks":       checks,
	})
}
