// Package server exposes the relay over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/easeaico/roleplay-relay/internal/logutil"
	"github.com/easeaico/roleplay-relay/internal/memory"
	"github.com/easeaico/roleplay-relay/internal/roleplay"
	"github.com/easeaico/roleplay-relay/internal/types"
)

const requestIDHeader = "X-Request-ID"

// Relay is the set of operations served over HTTP.
type Relay interface {
	Chat(ctx context.Context, req roleplay.ChatRequest) (*roleplay.ChatResponse, error)
	Characters(ctx context.Context) ([]roleplay.Card, error)
	Intro(ctx context.Context, name string) (*roleplay.IntroResult, error)
	Messages(ctx context.Context, name string, limit int) ([]types.LogEntry, error)
	InitialMemory(ctx context.Context, name string) error
	SeedMemories(ctx context.Context, name string) (int, error)
	ClearMemories(ctx context.Context, name string) (int, error)
}

type Server struct {
	relay Relay
}

func New(relay Relay) *Server {
	return &Server{relay: relay}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), cors())

	r.GET("/ping", s.Ping)
	r.POST("/chat/", s.Chat)
	r.GET("/personagens/", s.Characters)
	r.GET("/intro/", s.Intro)
	r.GET("/mensagens/", s.Messages)
	r.POST("/memoria_inicial/", s.InitialMemory)
	r.POST("/memorias_seed/", s.SeedMemories)
	r.POST("/memorias_clear/", s.ClearMemories)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type characterRequest struct {
	Character string `json:"personagem"`
}

func (s *Server) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Chat(c *gin.Context) {
	var req roleplay.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	resp, err := s.relay.Chat(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) Characters(c *gin.Context) {
	cards, err := s.relay.Characters(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (s *Server) Intro(c *gin.Context) {
	res, err := s.relay.Intro(c.Request.Context(), c.Query("personagem"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) Messages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limite"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limite must be a non-negative integer"})
			return
		}
		limit = n
	}
	entries, err := s.relay.Messages(c.Request.Context(), c.Query("personagem"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []types.LogEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) InitialMemory(c *gin.Context) {
	var req characterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := s.relay.InitialMemory(c.Request.Context(), req.Character); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "inseridas": 1})
}

func (s *Server) SeedMemories(c *gin.Context) {
	var req characterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	n, err := s.relay.SeedMemories(c.Request.Context(), req.Character)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "inseridas": n})
}

func (s *Server) ClearMemories(c *gin.Context) {
	var req characterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	n, err := s.relay.ClearMemories(c.Request.Context(), req.Character)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "removidas": n})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, memory.ErrVectorDisabled):
		status = http.StatusConflict
	case errors.Is(err, types.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	log := requestLogger(c)
	switch status {
	case http.StatusNotFound:
		log.Info("request failed", logutil.KeyKind, logutil.KindNotFound, "error", err)
	case http.StatusServiceUnavailable:
		log.Error("request failed", logutil.KeyKind, logutil.KindUpstream, "error", err)
	case http.StatusInternalServerError:
		log.Error("request failed", "error", err)
	default:
		log.Warn("request failed", "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func requestLogger(c *gin.Context) *slog.Logger {
	return slog.With("request_id", c.GetString("request_id"), "path", c.FullPath())
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()
		slog.Debug("request served",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
