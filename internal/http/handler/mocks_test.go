package handler_test

import (
	"context"

	"compasshq.app/compass/internal/advisory"
	"compasshq.app/compass/internal/model"
	"compasshq.app/compass/internal/store"
)

type mockProposalService struct {
	getFn    func(ctx context.Context, id int64) (*model.Proposal, error)
	listFn   func(ctx context.Context, query store.ProposalQuery) ([]model.Proposal, error)
	acceptFn func(ctx context.Context, id, reviewerID int64, modifications map[string]any) (*model.Proposal, error)
	rejectFn func(ctx context.Context, id, reviewerID int64, feedback string) (*model.Proposal, error)
	deferFn  func(ctx context.Context, id, reviewerID int64) (*model.Proposal, error)
}

func (m *mockProposalService) Get(ctx context.Context, id int64) (*model.Proposal, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockProposalService) List(ctx context.Context, query store.ProposalQuery) ([]model.Proposal, error) {
	if m.listFn != nil {
		return m.listFn(ctx, query)
	}
	return nil, nil
}

func (m *mockProposalService) Accept(ctx context.Context, id, reviewerID int64, modifications map[string]any) (*model.Proposal, error) {
	if m.acceptFn != nil {
		return m.acceptFn(ctx, id, reviewerID, modifications)
	}
	return nil, nil
}

func (m *mockProposalService) Reject(ctx context.Context, id, reviewerID int64, feedback string) (*model.Proposal, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, id, reviewerID, feedback)
	}
	return nil, nil
}

func (m *mockProposalService) Defer(ctx context.Context, id, reviewerID int64) (*model.Proposal, error) {
	if m.deferFn != nil {
		return m.deferFn(ctx, id, reviewerID)
	}
	return nil, nil
}

type mockQuestionService struct {
	askFn func(ctx context.Context, projectID int64, componentID *int64, text string) (*model.Proposal, error)
}

func (m *mockQuestionService) Ask(ctx context.Context, projectID int64, componentID *int64, text string) (*model.Proposal, error) {
	if m.askFn != nil {
		return m.askFn(ctx, projectID, componentID, text)
	}
	return nil, nil
}

type mockAssessmentService struct {
	assessFn func(ctx context.Context, projectID int64) error
	answerFn func(ctx context.Context, projectID, questionID int64) error
}

func (m *mockAssessmentService) RequestAssessment(ctx context.Context, projectID int64) error {
	if m.assessFn != nil {
		return m.assessFn(ctx, projectID)
	}
	return nil
}

func (m *mockAssessmentService) RequestAnswer(ctx context.Context, projectID, questionID int64) error {
	if m.answerFn != nil {
		return m.answerFn(ctx, projectID, questionID)
	}
	return nil
}

type mockBackend struct {
	validateFn func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error)
}

func (m *mockBackend) ValidateComponent(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
	if m.validateFn != nil {
		return m.validateFn(ctx, req)
	}
	return &model.ValidationResult{Success: true}, nil
}

func (m *mockBackend) AssessProject(ctx context.Context, req advisory.AssessRequest) (*advisory.AssessResult, error) {
	return &advisory.AssessResult{}, nil
}

func (m *mockBackend) AnswerQuestion(ctx context.Context, req advisory.AnswerRequest) (*advisory.AnswerResult, error) {
	return &advisory.AnswerResult{}, nil
}
