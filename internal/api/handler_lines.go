package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// LineResponse represents the API response for a single active line.
type LineResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Capacity    int    `json:"capacity"`
	CurrentLoad int    `json:"current_load"`
	FreeSlots   int    `json:"free_slots"`
}

// GetLines handles the GET /api/lines request.
func (h *Handler) GetLines(c *gin.Context) {
	snap, err := h.store.LoadSnapshot(c.Request.Context())
	if err != nil {
		log.Printf("Error loading line snapshot: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve lines"})
		return
	}

	responses := make([]LineResponse, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		responses = append(responses, LineResponse{
			ID:          l.ID,
			Name:        l.Name,
			Capacity:    l.Capacity,
			CurrentLoad: l.CurrentLoad,
			FreeSlots:   max(l.Capacity-l.CurrentLoad, 0),
		})
	}
	c.JSON(http.StatusOK, responses)
}
