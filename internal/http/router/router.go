package router

import (
	"github.com/gin-gonic/gin"

	"compasshq.app/compass/internal/advisor"
	"compasshq.app/compass/internal/http/handler"
	"compasshq.app/compass/internal/http/middleware"
	"compasshq.app/compass/internal/service"
)

type Config struct {
	Advisor advisor.Config // defaults for per-session coordinators
}

type Services struct {
	Proposals   service.ProposalService
	Questions   service.QuestionService
	Assessments service.AssessmentService
	Registry    *advisor.Registry
}

func SetupRoutes(router *gin.Engine, services Services, cfg Config) {
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.ReviewerIdentity())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		projects := v1.Group("/projects/:project_id")

		proposalHandler := handler.NewProposalHandler(services.Proposals)
		ProposalRouter(projects.Group("/proposals"), proposalHandler)

		validationHandler := handler.NewValidationHandler(services.Registry, cfg.Advisor)
		projects.POST("/validate", validationHandler.Validate)
		projects.DELETE("/validate", validationHandler.ClearValidation)

		questionHandler := handler.NewQuestionHandler(services.Questions)
		projects.POST("/questions", questionHandler.Ask)

		assessmentHandler := handler.NewAssessmentHandler(services.Assessments)
		projects.POST("/assess", assessmentHandler.Assess)
	}
}

func ProposalRouter(group *gin.RouterGroup, h *handler.ProposalHandler) {
	group.GET("", h.List)
	group.POST("/:id/accept", h.Accept)
	group.POST("/:id/reject", h.Reject)
	group.POST("/:id/defer", h.Defer)
}
