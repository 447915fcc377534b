// Package httpapi exposes a read-only Gin server over a state.Store for
// inspecting spells, their run history, and archived ledgers (spec.md §6
// external interfaces), grounded on the teacher's cmd/tarsy/main.go Gin
// router + gin.H JSON response idiom.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/franalgaba/grimoire-sub002/internal/state"
	"github.com/gin-gonic/gin"
)

// Server wraps a gin.Engine serving GET-only endpoints over a Store.
type Server struct {
	engine *gin.Engine
	store  state.Store
}

// NewServer builds a Server in the given gin mode ("debug"/"release"/"test").
func NewServer(store state.Store, mode string) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}
	s := &Server{engine: gin.Default(), store: store}
	s.routes()
	return s
}

// Engine exposes the underlying gin.Engine, e.g. for httptest.NewServer.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server on addr (e.g. ":8080").
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/spells", s.handleListSpells)
	s.engine.GET("/spells/:id/state", s.handleGetState)
	s.engine.GET("/spells/:id/runs", s.handleGetRuns)
	s.engine.GET("/spells/:id/runs/:runId/ledger", s.handleGetLedger)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleListSpells(c *gin.Context) {
	ids, err := s.store.ListSpells(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spells": ids})
}

func (s *Server) handleGetState(c *gin.Context) {
	snap, found, err := s.store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no state for spell"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": snap})
}

func (s *Server) handleGetRuns(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	runs, err := s.store.GetRuns(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetLedger(c *gin.Context) {
	entries, err := s.store.LoadLedger(c.Request.Context(), c.Param("id"), c.Param("runId"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func respondErr(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "request cancelled"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
