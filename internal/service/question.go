package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"compasshq.app/compass/common/id"
	"compasshq.app/compass/internal/model"
	"compasshq.app/compass/internal/store"
)

var ErrEmptyQuestion = errors.New("question text required")

// QuestionService persists reviewer questions and hands them to the worker.
// The question record appears in the feed immediately; its answer arrives
// later as a child record.
type QuestionService interface {
	Ask(ctx context.Context, projectID int64, componentID *int64, text string) (*model.Proposal, error)
}

type questionService struct {
	proposals   store.ProposalStore
	assessments AssessmentService
}

func NewQuestionService(proposals store.ProposalStore, assessments AssessmentService) QuestionService {
	return &questionService{
		proposals:   proposals,
		assessments: assessments,
	}
}

func (s *questionService) Ask(ctx context.Context, projectID int64, componentID *int64, text string) (*model.Proposal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuestion
	}

	question := &model.Proposal{
		ID:           id.New(),
		ProjectID:    projectID,
		ComponentID:  componentID,
		ActivityType: model.ActivityTypeQuestion,
		Rationale:    text,
		Confidence:   model.ConfidenceHigh,
		Status:       model.ProposalStatusPending,
	}
	if err := s.proposals.Create(ctx, question); err != nil {
		return nil, fmt.Errorf("creating question: %w", err)
	}

	if err := s.assessments.RequestAnswer(ctx, projectID, question.ID); err != nil {
		// The question is durable; a failed enqueue just delays the answer.
		slog.WarnContext(ctx, "failed to enqueue answer task",
			"question_id", question.ID,
			"error", err)
	}

	slog.InfoContext(ctx, "question recorded", "question_id", question.ID, "project_id", projectID)
	return question, nil
}
