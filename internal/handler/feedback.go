package handler

import (
	"net/http"

	"core/internal/model"
	"core/internal/repository"

	"github.com/gin-gonic/gin"
)

// FeedbackHandler handles feedback-related HTTP requests
type FeedbackHandler struct {
	archive *repository.MatchArchive
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(archive *repository.MatchArchive) *FeedbackHandler {
	return &FeedbackHandler{
		archive: archive,
	}
}

// Submit handles POST /api/v1/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Match archive is disabled (no DATABASE_URL configured)"})
		return
	}

	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// Validate action
	validActions := map[string]bool{
		"click":        true,
		"contact":      true,
		"view_details": true,
	}

	if !validActions[req.Action] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action. Must be one of: click, contact, view_details"})
		return
	}

	err := h.archive.LogFeedback(c.Request.Context(), req.MatchID, req.MLS, req.URL, req.Action)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to log feedback: " + err.Error()})
		return
	}

	response := model.FeedbackResponse{
		Success: true,
		Message: "Feedback logged successfully",
	}

	c.JSON(http.StatusOK, response)
}
