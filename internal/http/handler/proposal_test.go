package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"compasshq.app/compass/internal/http/handler"
	"compasshq.app/compass/internal/http/middleware"
	"compasshq.app/compass/internal/model"
	"compasshq.app/compass/internal/service"
	"compasshq.app/compass/internal/store"
)

var _ = Describe("ProposalHandler", func() {
	var (
		router *gin.Engine
		svc    *mockProposalService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		router.Use(middleware.ReviewerIdentity())
		svc = &mockProposalService{}
		h := handler.NewProposalHandler(svc)

		group := router.Group("/api/v1/projects/:project_id/proposals")
		group.GET("", h.List)
		group.POST("/:id/accept", h.Accept)
		group.POST("/:id/reject", h.Reject)
		group.POST("/:id/defer", h.Defer)
	})

	record := func(id int64, activityType model.ActivityType, status model.ProposalStatus) model.Proposal {
		return model.Proposal{
			ID:           id,
			ProjectID:    7,
			ActivityType: activityType,
			Confidence:   model.ConfidenceMedium,
			Rationale:    "because",
			Status:       status,
			CreatedAt:    time.Now(),
		}
	}

	Describe("List", func() {
		It("returns records with pending count excluding answers", func() {
			svc.listFn = func(ctx context.Context, query store.ProposalQuery) ([]model.Proposal, error) {
				Expect(query.ProjectID).To(Equal(int64(7)))
				return []model.Proposal{
					record(1, model.ActivityTypeProposal, model.ProposalStatusPending),
					record(2, model.ActivityTypeAnswer, model.ProposalStatusPending),
					record(3, model.ActivityTypeProposal, model.ProposalStatusAccepted),
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/7/proposals", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["pending_count"]).To(BeEquivalentTo(1))
			Expect(resp["proposals"]).To(HaveLen(3))
		})

		It("passes filters from query params", func() {
			var gotQuery store.ProposalQuery
			svc.listFn = func(ctx context.Context, query store.ProposalQuery) ([]model.Proposal, error) {
				gotQuery = query
				return nil, nil
			}

			req := httptest.NewRequest(http.MethodGet,
				"/api/v1/projects/7/proposals?status=pending&confidence=high&proposal_type=missing_information&component_type=risk", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotQuery.Statuses).To(Equal([]model.ProposalStatus{model.ProposalStatusPending}))
			Expect(gotQuery.Confidences).To(Equal([]model.Confidence{model.ConfidenceHigh}))
			Expect(gotQuery.ProposalTypes).To(Equal([]string{"missing_information"}))
			Expect(gotQuery.ComponentKind).To(Equal(model.ComponentKindRisk))
		})

		It("rejects a malformed created_after", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/projects/7/proposals?created_after=yesterday", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Accept", func() {
		It("requires a reviewer identity", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/7/proposals/100/accept", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("passes modifications through to the service", func() {
			var gotMods map[string]any
			var gotReviewer int64
			svc.acceptFn = func(ctx context.Context, id, reviewerID int64, modifications map[string]any) (*model.Proposal, error) {
				gotMods = modifications
				gotReviewer = reviewerID
				rec := record(id, model.ActivityTypeProposal, model.ProposalStatusModified)
				return &rec, nil
			}

			body, _ := json.Marshal(map[string]any{
				"modifications": map[string]any{"title": "Adjusted"},
			})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/7/proposals/100/accept", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Reviewer-Id", "900")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotReviewer).To(Equal(int64(900)))
			Expect(gotMods).To(HaveKeyWithValue("title", "Adjusted"))
		})

		It("returns 409 for an already reviewed record", func() {
			svc.acceptFn = func(ctx context.Context, id, reviewerID int64, modifications map[string]any) (*model.Proposal, error) {
				return nil, service.ErrAlreadyReviewed
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/7/proposals/100/accept", nil)
			req.Header.Set("X-Reviewer-Id", "900")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusConflict))
		})

		It("returns 422 for a disallowed action", func() {
			svc.acceptFn = func(ctx context.Context, id, reviewerID int64, modifications map[string]any) (*model.Proposal, error) {
				return nil, service.ErrActionNotAllowed
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/7/proposals/100/accept", nil)
			req.Header.Set("X-Reviewer-Id", "900")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	Describe("Reject", func() {
		It("forwards the feedback", func() {
			var gotFeedback string
			svc.rejectFn = func(ctx context.Context, id, reviewerID int64, feedback string) (*model.Proposal, error) {
				gotFeedback = feedback
				rec := record(id, model.ActivityTypeProposal, model.ProposalStatusRejected)
				return &rec, nil
			}

			body, _ := json.Marshal(map[string]string{"feedback": "out of scope"})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/7/proposals/100/reject", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Reviewer-Id", "900")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(gotFeedback).To(Equal("out of scope"))
		})
	})

	Describe("Defer", func() {
		It("returns 404 for a missing record", func() {
			svc.deferFn = func(ctx context.Context, id, reviewerID int64) (*model.Proposal, error) {
				return nil, service.ErrNotFound
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/7/proposals/404/defer", nil)
			req.Header.Set("X-Reviewer-Id", "900")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
