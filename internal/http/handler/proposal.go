package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"compasshq.app/compass/internal/http/middleware"
	"compasshq.app/compass/internal/model"
	"compasshq.app/compass/internal/service"
	"compasshq.app/compass/internal/store"
)

type ProposalHandler struct {
	proposals service.ProposalService
}

func NewProposalHandler(proposals service.ProposalService) *ProposalHandler {
	return &ProposalHandler{proposals: proposals}
}

type proposalResponse struct {
	ID            int64          `json:"id"`
	ProjectID     int64          `json:"project_id"`
	ComponentID   *int64         `json:"component_id,omitempty"`
	ComponentKind string         `json:"component_type,omitempty"`
	ActivityType  string         `json:"activity_type"`
	ProposalType  string         `json:"proposal_type,omitempty"`
	Confidence    string         `json:"confidence"`
	Rationale     string         `json:"rationale"`
	Changes       map[string]any `json:"changes,omitempty"`
	Evidence      []string       `json:"evidence,omitempty"`
	Impact        string         `json:"estimated_impact,omitempty"`
	ParentID      *int64         `json:"parent_id,omitempty"`
	Status        string         `json:"status"`
	ReviewedBy    *int64         `json:"reviewed_by,omitempty"`
	ReviewedAt    *string        `json:"reviewed_at,omitempty"`
	Feedback      string         `json:"feedback,omitempty"`
	Modifications map[string]any `json:"modifications,omitempty"`
	Actions       []string       `json:"actions"`
	CreatedAt     string         `json:"created_at"`
}

type listProposalsResponse struct {
	Proposals    []proposalResponse `json:"proposals"`
	PendingCount int                `json:"pending_count"`
}

// List returns a project's advisory records, newest first, with the count of
// records still awaiting a decision.
func (h *ProposalHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	projectID, ok := pathInt64(c, "project_id")
	if !ok {
		return
	}

	query, err := buildQuery(c, projectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.proposals.List(ctx, query)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list proposals", "error", err, "project_id", projectID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list proposals"})
		return
	}

	resp := listProposalsResponse{
		Proposals: make([]proposalResponse, len(records)),
	}
	for i := range records {
		resp.Proposals[i] = toProposalResponse(&records[i])
		if records[i].Pending() {
			resp.PendingCount++
		}
	}

	c.JSON(http.StatusOK, resp)
}

type acceptRequest struct {
	Modifications map[string]any `json:"modifications"`
}

// Accept approves a record. A request body carrying modifications marks the
// record modified instead of accepted.
func (h *ProposalHandler) Accept(c *gin.Context) {
	id, reviewerID, ok := reviewTarget(c)
	if !ok {
		return
	}

	var req acceptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	updated, err := h.proposals.Accept(c.Request.Context(), id, reviewerID, req.Modifications)
	if err != nil {
		h.reviewError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProposalResponse(updated))
}

type rejectRequest struct {
	Feedback string `json:"feedback"`
}

func (h *ProposalHandler) Reject(c *gin.Context) {
	id, reviewerID, ok := reviewTarget(c)
	if !ok {
		return
	}

	var req rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	updated, err := h.proposals.Reject(c.Request.Context(), id, reviewerID, req.Feedback)
	if err != nil {
		h.reviewError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProposalResponse(updated))
}

func (h *ProposalHandler) Defer(c *gin.Context) {
	id, reviewerID, ok := reviewTarget(c)
	if !ok {
		return
	}

	updated, err := h.proposals.Defer(c.Request.Context(), id, reviewerID)
	if err != nil {
		h.reviewError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProposalResponse(updated))
}

func (h *ProposalHandler) reviewError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "reviewer identity required"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, service.ErrAlreadyReviewed):
		c.JSON(http.StatusConflict, gin.H{"error": "record has already been reviewed"})
	case errors.Is(err, service.ErrActionNotAllowed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "action not allowed for this activity type"})
	default:
		slog.ErrorContext(ctx, "review failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "review failed"})
	}
}

// reviewTarget resolves the record path param and the reviewer identity. A
// missing reviewer is rejected here so services always receive a real one.
func reviewTarget(c *gin.Context) (int64, int64, bool) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return 0, 0, false
	}
	reviewerID, ok := middleware.ReviewerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "reviewer identity required"})
		return 0, 0, false
	}
	return id, reviewerID, true
}

func pathInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func buildQuery(c *gin.Context, projectID int64) (store.ProposalQuery, error) {
	query := store.ProposalQuery{ProjectID: projectID}

	for _, s := range c.QueryArray("status") {
		query.Statuses = append(query.Statuses, model.ProposalStatus(s))
	}
	for _, conf := range c.QueryArray("confidence") {
		query.Confidences = append(query.Confidences, model.Confidence(conf))
	}
	query.ProposalTypes = c.QueryArray("proposal_type")

	if kind := c.Query("component_type"); kind != "" {
		query.ComponentKind = model.ComponentKind(kind)
	}
	if raw := c.Query("component_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return query, errors.New("invalid component_id")
		}
		query.ComponentID = &id
	}
	if raw := c.Query("created_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, errors.New("invalid created_after")
		}
		query.CreatedAfter = &t
	}
	if raw := c.Query("created_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, errors.New("invalid created_before")
		}
		query.CreatedBefore = &t
	}

	return query, nil
}

func toProposalResponse(p *model.Proposal) proposalResponse {
	resp := proposalResponse{
		ID:            p.ID,
		ProjectID:     p.ProjectID,
		ComponentID:   p.ComponentID,
		ComponentKind: string(p.ComponentKind),
		ActivityType:  string(p.ActivityType),
		ProposalType:  p.ProposalType,
		Confidence:    string(p.Confidence),
		Rationale:     p.Rationale,
		Changes:       p.Changes,
		Evidence:      p.Evidence,
		Impact:        p.EstimatedImpact,
		ParentID:      p.ParentID,
		Status:        string(p.Status),
		ReviewedBy:    p.ReviewedBy,
		Feedback:      p.Feedback,
		Modifications: p.Modifications,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}

	actions := model.ActionsFor(p.ActivityType)
	resp.Actions = make([]string, 0, len(actions))
	if !p.Status.Terminal() {
		for _, a := range actions {
			resp.Actions = append(resp.Actions, string(a))
		}
	}

	if p.ReviewedAt != nil {
		formatted := p.ReviewedAt.Format(time.RFC3339)
		resp.ReviewedAt = &formatted
	}
	return resp
}
