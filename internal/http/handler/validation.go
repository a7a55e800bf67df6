package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"compasshq.app/compass/internal/advisor"
	"compasshq.app/compass/internal/model"
)

type ValidationHandler struct {
	registry *advisor.Registry
	debounce advisor.Config // template config; per-session copies get scope filled in
}

func NewValidationHandler(registry *advisor.Registry, defaults advisor.Config) *ValidationHandler {
	return &ValidationHandler{
		registry: registry,
		debounce: defaults,
	}
}

type validateRequest struct {
	SessionID     string         `json:"session_id" binding:"required"`
	ComponentType string         `json:"component_type" binding:"required"`
	ComponentID   *int64         `json:"component_id"`
	Field         string         `json:"field"`
	Value         any            `json:"value"`
	Snapshot      map[string]any `json:"snapshot"`
}

// Validate drives the session's coordinator. A field/value pair schedules a
// debounced check and returns the current state immediately; a snapshot runs
// a full validation and returns its result.
func (h *ValidationHandler) Validate(c *gin.Context) {
	projectID, ok := pathInt64(c, "project_id")
	if !ok {
		return
	}

	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and component_type are required"})
		return
	}
	if req.Field == "" && len(req.Snapshot) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either field or snapshot is required"})
		return
	}

	cfg := h.debounce
	cfg.ProjectID = projectID
	cfg.ComponentKind = model.ComponentKind(req.ComponentType)
	cfg.ComponentID = req.ComponentID

	key := sessionKey(projectID, req.SessionID)
	coordinator := h.registry.Acquire(key, cfg)

	if len(req.Snapshot) > 0 {
		result := coordinator.ValidateAll(c.Request.Context(), req.Snapshot)
		c.JSON(http.StatusOK, gin.H{
			"result": result,
			"state":  coordinator.Snapshot(),
		})
		return
	}

	coordinator.ValidateField(req.Field, req.Value)
	c.JSON(http.StatusAccepted, gin.H{"state": coordinator.Snapshot()})
}

type clearValidationRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ClearValidation tears down a session's coordinator, aborting any pending
// or in-flight validation.
func (h *ValidationHandler) ClearValidation(c *gin.Context) {
	projectID, ok := pathInt64(c, "project_id")
	if !ok {
		return
	}

	var req clearValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	h.registry.Release(sessionKey(projectID, req.SessionID))
	c.Status(http.StatusNoContent)
}

func sessionKey(projectID int64, sessionID string) string {
	return fmt.Sprintf("%d:%s", projectID, sessionID)
}
