package handler

import (
	"net/http"
	"strconv"

	"core/internal/repository"

	"github.com/gin-gonic/gin"
)

// HistoryHandler exposes the match archive
type HistoryHandler struct {
	archive *repository.MatchArchive
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(archive *repository.MatchArchive) *HistoryHandler {
	return &HistoryHandler{
		archive: archive,
	}
}

// Recent handles GET /api/v1/matches/recent
func (h *HistoryHandler) Recent(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Match archive is disabled (no DATABASE_URL configured)"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	matches, err := h.archive.RecentMatches(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch matches: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// Listings handles GET /api/v1/matches/:match_id/listings
func (h *HistoryHandler) Listings(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Match archive is disabled (no DATABASE_URL configured)"})
		return
	}

	matchID := c.Param("match_id")
	if matchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing match_id"})
		return
	}

	listings, err := h.archive.MatchListings(c.Request.Context(), matchID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listings: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": listings})
}
