package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"compasshq.app/compass/internal/service"
)

type QuestionHandler struct {
	questions service.QuestionService
}

func NewQuestionHandler(questions service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questions: questions}
}

type askQuestionRequest struct {
	Text        string `json:"text" binding:"required"`
	ComponentID *int64 `json:"component_id"`
}

// Ask persists a question record and enqueues its answer. The question shows
// up in the feed immediately; the answer arrives asynchronously.
func (h *QuestionHandler) Ask(c *gin.Context) {
	ctx := c.Request.Context()

	projectID, ok := pathInt64(c, "project_id")
	if !ok {
		return
	}

	var req askQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	question, err := h.questions.Ask(ctx, projectID, req.ComponentID, req.Text)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}
		slog.ErrorContext(ctx, "failed to record question", "error", err, "project_id", projectID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record question"})
		return
	}

	c.JSON(http.StatusCreated, toProposalResponse(question))
}
