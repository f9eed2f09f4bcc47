// Package api exposes the sequencer over HTTP
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"seqbox/audio"
	"seqbox/debug"
	"seqbox/sequencer"
)

// Sequencer is the part of sequencer.Manager the API drives
type Sequencer interface {
	Snapshot() sequencer.State
	SetStep(track, step int, active bool)
	ToggleStep(track, step int) bool
	SetBPM(bpm int)
	SetPlaying(p bool)
	Kit() string
	SetKit(name string) error
	LoadPattern(p sequencer.Pattern) error
	Pattern(name string) sequencer.Pattern
}

// Server routes HTTP requests to a sequencer
type Server struct {
	seq    Sequencer
	status func() audio.Status
	router *gin.Engine
}

// NewServer builds the router. status may be nil when no audio pipeline
// is running.
func NewServer(seq Sequencer, status func() audio.Status) *Server {
	s := &Server{seq: seq, status: status}

	r := gin.New()
	r.Use(gin.Recovery(), logMiddleware(), corsMiddleware())

	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/state", s.getState)
		v1.PUT("/steps/:track/:step", s.putStep)
		v1.POST("/steps/:track/:step/toggle", s.toggleStep)
		v1.PUT("/bpm", s.putBPM)
		v1.POST("/play", s.play)
		v1.POST("/pause", s.pause)
		v1.GET("/kits", s.listKits)
		v1.PUT("/kit", s.putKit)
		v1.GET("/pattern", s.getPattern)
		v1.PUT("/pattern", s.putPattern)
		v1.GET("/audio", s.getAudio)
	}

	s.router = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		debug.Log("api", "listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// logMiddleware sends request lines to the debug log instead of stdout,
// which belongs to the TUI
func logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		debug.Log("api", "%s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "seqbox",
	})
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(format, args...)})
}

// cell parses and range-checks the :track and :step parameters
func cell(c *gin.Context) (track, step int, ok bool) {
	track, err := strconv.Atoi(c.Param("track"))
	if err != nil || track < 0 || track >= sequencer.Tracks {
		badRequest(c, "track must be 0-%d", sequencer.Tracks-1)
		return 0, 0, false
	}
	step, err = strconv.Atoi(c.Param("step"))
	if err != nil || step < 0 || step >= sequencer.Steps {
		badRequest(c, "step must be 0-%d", sequencer.Steps-1)
		return 0, 0, false
	}
	return track, step, true
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.seq.Snapshot())
}

type stepRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (s *Server) putStep(c *gin.Context) {
	track, step, ok := cell(c)
	if !ok {
		return
	}
	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	s.seq.SetStep(track, step, *req.Active)
	c.JSON(http.StatusOK, gin.H{"track": track, "step": step, "active": *req.Active})
}

func (s *Server) toggleStep(c *gin.Context) {
	track, step, ok := cell(c)
	if !ok {
		return
	}
	active := s.seq.ToggleStep(track, step)
	c.JSON(http.StatusOK, gin.H{"track": track, "step": step, "active": active})
}

type bpmRequest struct {
	BPM int `json:"bpm" binding:"required"`
}

func (s *Server) putBPM(c *gin.Context) {
	var req bpmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	if req.BPM < sequencer.MinBPM || req.BPM > sequencer.MaxBPM {
		badRequest(c, "bpm must be %d-%d", sequencer.MinBPM, sequencer.MaxBPM)
		return
	}
	s.seq.SetBPM(req.BPM)
	c.JSON(http.StatusOK, gin.H{"bpm": s.seq.Snapshot().BPM})
}

func (s *Server) play(c *gin.Context) {
	s.seq.SetPlaying(true)
	c.JSON(http.StatusOK, gin.H{"playing": true})
}

func (s *Server) pause(c *gin.Context) {
	s.seq.SetPlaying(false)
	c.JSON(http.StatusOK, gin.H{"playing": false})
}

func (s *Server) listKits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"kits":    sequencer.KitNames(),
		"current": s.seq.Kit(),
	})
}

type kitRequest struct {
	Kit string `json:"kit" binding:"required"`
}

func (s *Server) putKit(c *gin.Context) {
	var req kitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	if err := s.seq.SetKit(req.Kit); err != nil {
		badRequest(c, "%v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kit": req.Kit})
}

func (s *Server) getPattern(c *gin.Context) {
	c.JSON(http.StatusOK, s.seq.Pattern(c.DefaultQuery("name", "current")))
}

func (s *Server) putPattern(c *gin.Context) {
	var p sequencer.Pattern
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "invalid body: %v", err)
		return
	}
	if err := s.seq.LoadPattern(p); err != nil {
		badRequest(c, "%v", err)
		return
	}
	c.JSON(http.StatusOK, s.seq.Snapshot())
}

func (s *Server) getAudio(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audio pipeline not running"})
		return
	}
	c.JSON(http.StatusOK, s.status())
}
