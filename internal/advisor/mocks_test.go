package advisor_test

import (
	"context"

	"compasshq.app/compass/internal/advisory"
	"compasshq.app/compass/internal/model"
)

type mockBackend struct {
	validateFn func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error)
	assessFn   func(ctx context.Context, req advisory.AssessRequest) (*advisory.AssessResult, error)
	answerFn   func(ctx context.Context, req advisory.AnswerRequest) (*advisory.AnswerResult, error)
}

func (m *mockBackend) ValidateComponent(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
	if m.validateFn != nil {
		return m.validateFn(ctx, req)
	}
	return &model.ValidationResult{Success: true}, nil
}

func (m *mockBackend) AssessProject(ctx context.Context, req advisory.AssessRequest) (*advisory.AssessResult, error) {
	if m.assessFn != nil {
		return m.assessFn(ctx, req)
	}
	return &advisory.AssessResult{}, nil
}

func (m *mockBackend) AnswerQuestion(ctx context.Context, req advisory.AnswerRequest) (*advisory.AnswerResult, error) {
	if m.answerFn != nil {
		return m.answerFn(ctx, req)
	}
	return &advisory.AnswerResult{}, nil
}
