package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"compasshq.app/compass/internal/service"
)

type AssessmentHandler struct {
	assessments service.AssessmentService
}

func NewAssessmentHandler(assessments service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// Assess enqueues a whole-project assessment. Resulting records land in the
// feed as pending once the worker finishes.
func (h *AssessmentHandler) Assess(c *gin.Context) {
	ctx := c.Request.Context()

	projectID, ok := pathInt64(c, "project_id")
	if !ok {
		return
	}

	if err := h.assessments.RequestAssessment(ctx, projectID); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue assessment", "error", err, "project_id", projectID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue assessment"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
