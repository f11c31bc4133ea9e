package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dealscout/models"
	"dealscout/services"
)

// Server exposes the scoring engine's HTTP interface: weights
// administration, manual recompute, catalog stats, health and metrics.
type Server struct {
	recompute *services.RecomputeService
	weights   *services.WeightsService
	stats     *services.StatsService
	log       *zap.Logger
	http      *http.Server
}

func New(addr string, recompute *services.RecomputeService, weights *services.WeightsService, stats *services.StatsService, log *zap.Logger) *Server {
	s := &Server{
		recompute: recompute,
		weights:   weights,
		stats:     stats,
		log:       log,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/healthz", s.handleHealthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/weights", s.handleGetWeights)
		api.PUT("/weights", s.handlePutWeights)
		api.POST("/recompute", s.handleRecompute)
		api.GET("/stats", s.handleStats)
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGetWeights(c *gin.Context) {
	w, err := s.weights.Get(c.Request.Context())
	if err != nil {
		s.log.Error("get weights failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load weights"})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *Server) handlePutWeights(c *gin.Context) {
	var w models.AlgorithmWeights
	if err := c.ShouldBindJSON(&w); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"accepted": false, "reason": "invalid JSON body"})
		return
	}

	if err := s.weights.Update(c.Request.Context(), w); err != nil {
		if errors.Is(err, models.ErrInvalidWeights) {
			c.JSON(http.StatusBadRequest, gin.H{"accepted": false, "reason": err.Error()})
			return
		}
		s.log.Error("update weights failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save weights"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (s *Server) handleRecompute(c *gin.Context) {
	result, err := s.recompute.Recompute(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrRecomputeInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "recompute already in progress"})
			return
		}
		s.log.Error("recompute failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recompute failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.stats.Get(c.Request.Context())
	if err != nil {
		s.log.Error("get stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
