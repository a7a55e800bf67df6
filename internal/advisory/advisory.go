// Package advisory defines the contract with the AI backend that reviews
// component data and produces proposals, insights and answers. The client
// side (coordinator, worker) depends only on the Backend interface; the LLM
// implementation lives behind it.
package advisory

import (
	"context"

	"compasshq.app/compass/internal/model"
)

// ValidateRequest is a lightweight per-field or whole-form validation call.
type ValidateRequest struct {
	ProjectID     int64
	ComponentKind model.ComponentKind
	ComponentID   *int64
	Data          map[string]any
	Scope         model.ValidationScope
}

// AssessRequest asks for a whole-project assessment. Context carries
// formatted project state (components, dependencies, recent activity).
type AssessRequest struct {
	ProjectID int64
	Context   string
}

// AssessResult is the set of records an assessment proposes, not yet
// persisted.
type AssessResult struct {
	Records      []model.Proposal
	Usage        model.UsageStats
	ProcessingMS int64
}

// AnswerRequest asks the backend to answer a stored user question.
type AnswerRequest struct {
	ProjectID  int64
	QuestionID int64
	Question   string
	Context    string
}

// AnswerResult carries the answer record (activity_type=answer, parented to
// the question) and usage accounting.
type AnswerResult struct {
	Answer       model.Proposal
	Usage        model.UsageStats
	ProcessingMS int64
}

// Backend is the advisory service: request in, structured response out.
// Implementations must be safe for concurrent use.
type Backend interface {
	ValidateComponent(ctx context.Context, req ValidateRequest) (*model.ValidationResult, error)
	AssessProject(ctx context.Context, req AssessRequest) (*AssessResult, error)
	AnswerQuestion(ctx context.Context, req AnswerRequest) (*AnswerResult, error)
}
