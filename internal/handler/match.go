package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"core/internal/model"
	"core/internal/service"

	"github.com/gin-gonic/gin"
)

// MatchHandler handles listing-match HTTP requests
type MatchHandler struct {
	matcher      *service.MatcherService
	defaultLimit int
	maxLimit     int
	aiEnabled    bool
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matcher *service.MatcherService, defaultLimit, maxLimit int, aiEnabled bool) *MatchHandler {
	return &MatchHandler{
		matcher:      matcher,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		aiEnabled:    aiEnabled,
	}
}

// Match handles POST /api/v1/match
func (h *MatchHandler) Match(c *gin.Context) {
	if !h.aiEnabled {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfigured: OPENAI_API_KEY missing"})
		return
	}

	var req model.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: " + err.Error()})
		return
	}

	crit := req.Normalize(h.defaultLimit, h.maxLimit)

	result, err := h.matcher.Match(c.Request.Context(), crit)
	if err != nil {
		c.JSON(statusForMatchError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// MatchStream handles POST /api/v1/match/stream - SSE streaming match
func (h *MatchHandler) MatchStream(c *gin.Context) {
	if !h.aiEnabled {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfigured: OPENAI_API_KEY missing"})
		return
	}

	var req model.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: " + err.Error()})
		return
	}

	crit := req.Normalize(h.defaultLimit, h.maxLimit)

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	sendSSE(c, "start", map[string]any{"location": crit.Location, "limit": crit.Limit})
	flusher.Flush()

	result, err := h.matcher.MatchStream(c.Request.Context(), crit, func(event string, data any) error {
		sendSSE(c, event, data)
		flusher.Flush()
		return nil
	})

	if err != nil {
		sendSSE(c, "error", map[string]any{"error": err.Error()})
		flusher.Flush()
		return
	}

	sendSSE(c, "results", result)
	flusher.Flush()

	sendSSE(c, "done", nil)
	flusher.Flush()
}

// sendSSE sends a Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) {
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
			return
		}
		fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, string(jsonData))
	} else {
		fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", event)
	}
}

// statusForMatchError maps service errors to HTTP statuses: upstream
// failures and empty terminal results are upstream-dependency conditions
func statusForMatchError(err error) int {
	if errors.Is(err, service.ErrUpstream) || errors.Is(err, service.ErrNoContent) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
