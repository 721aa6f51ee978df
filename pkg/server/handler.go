package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/completion"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/store"
)

type Handler struct {
	Service *Service

	mcpMu       sync.RWMutex
	mcpSessions map[string]*MCPSession
}

func NewHandler(s *Service) *Handler {
	return &Handler{
		Service:     s,
		mcpSessions: make(map[string]*MCPSession),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/mcp", h.MCPHandler)
	api := r.Group("/api")
	{
		api.POST("/research", h.createSession)
		api.GET("/research", h.listSessions)
		api.GET("/research/:id", h.getSession)
		api.DELETE("/research/:id", h.deleteSession)
		api.POST("/research/:id/answers", h.submitAnswers)
		api.POST("/research/:id/continue", h.continueResearch)
		api.GET("/research/:id/report", h.downloadReport)
		api.GET("/research/:id/logs", h.getSessionLogs)
	}
}

// statusFor maps an error to a response status. Errors without a sentinel
// use fallback.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, research.ErrEmptyTopic), errors.Is(err, research.ErrIncompleteAnswers):
		return http.StatusUnprocessableEntity
	case errors.Is(err, research.ErrInvalidStage), errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, research.ErrMalformedPlan),
		errors.Is(err, research.ErrMalformedQueries),
		errors.Is(err, completion.ErrUnexpectedShape),
		errors.Is(err, completion.ErrUnknownResponse):
		return http.StatusBadGateway
	default:
		return fallback
	}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.Service.CreateSession(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err, http.StatusBadGateway), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.Service.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// Return empty list instead of null
	if sessions == nil {
		sessions = []research.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) getSession(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	sess, err := h.Service.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err, http.StatusInternalServerError), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sess)
}

func (h *Handler) deleteSession(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.Service.DeleteSession(c.Request.Context(), id); err != nil {
		c.JSON(statusFor(err, http.StatusInternalServerError), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) submitAnswers(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req AnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.Service.SubmitAnswers(c.Request.Context(), id, req)
	if err != nil {
		body := gin.H{"error": err.Error()}
		if sess != nil {
			body["session"] = sess
		}
		c.JSON(statusFor(err, http.StatusBadGateway), body)
		return
	}

	c.JSON(http.StatusOK, sess)
}

func (h *Handler) continueResearch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	resp, err := h.Service.Continue(c.Request.Context(), id)
	if err != nil {
		body := gin.H{"error": err.Error()}
		if resp != nil {
			body["session"] = resp.Session
		}
		c.JSON(statusFor(err, http.StatusBadGateway), body)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) downloadReport(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	sess, err := h.Service.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err, http.StatusInternalServerError), gin.H{"error": err.Error()})
		return
	}
	if sess.Stage != research.StageComplete {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("report not available in stage %s", sess.Stage)})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", research.ReportFilename(sess.Topic)))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(sess.Report))
}

func (h *Handler) getSessionLogs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	logs, err := h.Service.GetSessionLogs(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err, http.StatusInternalServerError), gin.H{"error": err.Error()})
		return
	}

	if logs == nil {
		logs = []store.LogEntry{}
	}
	c.JSON(http.StatusOK, logs)
}
