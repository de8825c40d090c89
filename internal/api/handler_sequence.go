package api

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"production-ops-backend/internal/notification"
	"production-ops-backend/internal/sequencer"
)

type sequenceRequest struct {
	Orders     []sequencer.Order `json:"orders" binding:"required"`
	AutoCreate *bool             `json:"auto_create"`
}

type pendingSequenceRequest struct {
	AutoCreate *bool `json:"auto_create"`
}

type sequenceResponse struct {
	RunID string `json:"run_id"`
	sequencer.Result
}

// PostSequence handles POST /api/sequence.
func (h *Handler) PostSequence(c *gin.Context) {
	var req sequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	h.runSequence(c, req.Orders, h.autoCreate(req.AutoCreate))
}

// PostSequencePending handles POST /api/sequence/pending, sequencing the
// ERP-imported orders that have no fabrication order yet.
func (h *Handler) PostSequencePending(c *gin.Context) {
	var req pendingSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	candidates, err := h.store.PendingCandidates(c.Request.Context())
	if err != nil {
		log.Printf("Error loading pending candidates: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load pending orders", "details": err.Error()})
		return
	}

	h.runSequence(c, candidates, h.autoCreate(req.AutoCreate))
}

func (h *Handler) autoCreate(requested *bool) bool {
	if requested == nil {
		return h.autoCreateDefault
	}
	return *requested
}

func (h *Handler) runSequence(c *gin.Context, candidates []sequencer.Order, autoCreate bool) {
	runID := uuid.NewString()
	ctx := c.Request.Context()

	res, err := h.sequencer.Run(ctx, candidates, autoCreate)
	if err != nil {
		log.Printf("Sequencing run %s failed: %v", runID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to load production capacity", "details": err.Error()})
		return
	}

	log.Printf("Sequencing run %s: %d candidates, %d placed, %d conflicts (auto_create=%t)",
		runID, len(candidates), len(res.Sequence), len(res.Conflicts), autoCreate)

	if autoCreate {
		h.afterCommit(ctx, runID, res.Committed())
	}

	c.JSON(http.StatusOK, sequenceResponse{RunID: runID, Result: *res})
}

// afterCommit invalidates cached line loads and notifies line subscribers.
func (h *Handler) afterCommit(ctx context.Context, runID string, committed []sequencer.AssignmentEntry) {
	if len(committed) == 0 {
		return
	}
	if h.cache != nil {
		h.cache.Flush()
	}
	if h.notifier == nil {
		return
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	for _, notice := range lineNotices(runID, committed) {
		if err := h.notifier.Dispatch(dispatchCtx, notice); err != nil {
			log.Printf("Dropping notification for line %s (run %s): %v", notice.LineID, runID, err)
		}
	}
}

// lineNotices groups committed entries per line, in order of first appearance.
func lineNotices(runID string, committed []sequencer.AssignmentEntry) []notification.LineNotice {
	index := make(map[string]int)
	var notices []notification.LineNotice
	for _, e := range committed {
		i, ok := index[e.LineID]
		if !ok {
			i = len(notices)
			index[e.LineID] = i
			notices = append(notices, notification.LineNotice{RunID: runID, LineID: e.LineID})
		}
		notices[i].Orders++
	}
	return notices
}
