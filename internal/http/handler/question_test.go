package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"compasshq.app/compass/internal/http/handler"
	"compasshq.app/compass/internal/model"
)

var _ = Describe("QuestionHandler", func() {
	var (
		router *gin.Engine
		svc    *mockQuestionService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockQuestionService{}
		h := handler.NewQuestionHandler(svc)
		router.POST("/api/v1/projects/:project_id/questions", h.Ask)
	})

	It("creates a question record", func() {
		svc.askFn = func(ctx context.Context, projectID int64, componentID *int64, text string) (*model.Proposal, error) {
			Expect(projectID).To(Equal(int64(7)))
			Expect(text).To(Equal("What is blocking?"))
			return &model.Proposal{
				ID:           500,
				ProjectID:    projectID,
				ActivityType: model.ActivityTypeQuestion,
				Rationale:    text,
				Status:       model.ProposalStatusPending,
			}, nil
		}

		body, _ := json.Marshal(map[string]string{"text": "What is blocking?"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/7/questions", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusCreated))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["activity_type"]).To(Equal("question"))
	})

	It("rejects a request without text", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/7/questions", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("AssessmentHandler", func() {
	var (
		router *gin.Engine
		svc    *mockAssessmentService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockAssessmentService{}
		h := handler.NewAssessmentHandler(svc)
		router.POST("/api/v1/projects/:project_id/assess", h.Assess)
	})

	It("queues an assessment", func() {
		var gotProject int64
		svc.assessFn = func(ctx context.Context, projectID int64) error {
			gotProject = projectID
			return nil
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/7/assess", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusAccepted))
		Expect(gotProject).To(Equal(int64(7)))
	})

	It("returns 500 when the enqueue fails", func() {
		svc.assessFn = func(ctx context.Context, projectID int64) error {
			return errors.New("redis down")
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/7/assess", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
