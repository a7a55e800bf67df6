package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"compasshq.app/compass/internal/queue"
)

// AssessmentService enqueues background advisory work. The heavy LLM calls
// run in the worker; the caller only pays for an XADD.
type AssessmentService interface {
	RequestAssessment(ctx context.Context, projectID int64) error
	RequestAnswer(ctx context.Context, projectID, questionID int64) error
}

type assessmentService struct {
	producer queue.Producer
}

func NewAssessmentService(producer queue.Producer) AssessmentService {
	return &assessmentService{producer: producer}
}

func (s *assessmentService) RequestAssessment(ctx context.Context, projectID int64) error {
	task := queue.Task{
		TaskType:  queue.TaskTypeProjectAssessment,
		ProjectID: projectID,
		TraceID:   currentTraceID(ctx),
	}
	if err := s.producer.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue assessment: %w", err)
	}

	slog.InfoContext(ctx, "assessment requested", "project_id", projectID)
	return nil
}

func (s *assessmentService) RequestAnswer(ctx context.Context, projectID, questionID int64) error {
	task := queue.Task{
		TaskType:   queue.TaskTypeQuestionAnswer,
		ProjectID:  projectID,
		QuestionID: &questionID,
		TraceID:    currentTraceID(ctx),
	}
	if err := s.producer.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue answer: %w", err)
	}

	slog.InfoContext(ctx, "answer requested", "project_id", projectID, "question_id", questionID)
	return nil
}

// currentTraceID propagates the request trace into the task so the worker
// can link its span back to the originating request.
func currentTraceID(ctx context.Context) *string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	id := sc.TraceID().String()
	return &id
}
