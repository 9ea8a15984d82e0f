// Package server exposes the pipeline over HTTP. Handlers are thin: they
// decode requests, delegate to the runtime, and translate typed failures
// into stable error codes.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loopai/internal/logging"
	"loopai/internal/model"
	"loopai/internal/runtime"
	"loopai/internal/store"
)

// Server wraps the gin engine around a runtime.
type Server struct {
	rt      *runtime.Runtime
	records store.Store // optional, for summaries
	logger  *slog.Logger
	engine  *gin.Engine
}

// New builds the HTTP surface. records may be nil.
func New(rt *runtime.Runtime, records store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{rt: rt, records: records, logger: logger, engine: gin.New()}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/execute", s.execute)
		v1.POST("/validate", s.validateBatch)
		v1.GET("/tasks/:id/stats", s.taskStats)
		v1.GET("/tasks/:id/summary", s.taskSummary)
	}
}

// Handler returns the http.Handler for serving and tests.
func (s *Server) Handler() http.Handler { return s.engine }

type executeRequest struct {
	Task          *model.Task    `json:"task" binding:"required"`
	Version       int            `json:"version" binding:"required"`
	Input         model.Document `json:"input" binding:"required"`
	Expected      any            `json:"expected,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) execute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Code: "bad_request", Message: err.Error()}})
		return
	}

	result, err := s.rt.Run(c.Request.Context(), req.Task, req.Version, req.Input, req.Expected, req.CorrelationID)
	if err != nil {
		status, body := translateError(err)
		c.JSON(status, gin.H{"error": body})
		return
	}
	c.JSON(http.StatusOK, result)
}

type validateRequest struct {
	TaskID string                 `json:"task_id" binding:"required"`
	Items  []model.ValidationItem `json:"items" binding:"required"`
}

func (s *Server) validateBatch(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Code: "bad_request", Message: err.Error()}})
		return
	}
	report := s.rt.ValidateBatch(c.Request.Context(), req.TaskID, req.Items)
	c.JSON(http.StatusOK, report)
}

func (s *Server) taskStats(c *gin.Context) {
	snap, ok := s.rt.Stats(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": errorBody{
			Code: "not_found", Message: "no statistics for task"}})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// taskSummary reports persisted execution counts for the current day,
// mirroring the runtime's operational dashboard needs.
func (s *Server) taskSummary(c *gin.Context) {
	if s.records == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errorBody{
			Code: "not_found", Message: "record store not configured"}})
		return
	}
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	sum, err := s.records.SummarizeExecutions(c.Param("id"), midnight)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{
			Code: "internal", Message: err.Error()}})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// translateError maps pipeline failures onto HTTP statuses while keeping
// the transient/terminal distinction visible to callers.
func translateError(err error) (int, errorBody) {
	var genFailure *model.GenerationFailure
	if errors.As(err, &genFailure) {
		code := "generation_" + string(genFailure.Kind)
		switch genFailure.Kind {
		case model.GenerationTimeout:
			return http.StatusGatewayTimeout, errorBody{Code: code, Message: genFailure.Error()}
		case model.GenerationTransport:
			return http.StatusBadGateway, errorBody{Code: code, Message: genFailure.Error()}
		default:
			return http.StatusUnprocessableEntity, errorBody{Code: code, Message: genFailure.Error()}
		}
	}
	return http.StatusInternalServerError, errorBody{Code: "internal", Message: err.Error()}
}
