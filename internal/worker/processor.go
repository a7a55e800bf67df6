package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"compasshq.app/compass/internal/advisory"
	"compasshq.app/compass/internal/model"
	"compasshq.app/compass/internal/queue"
	"compasshq.app/compass/internal/realtime"
	"compasshq.app/compass/internal/store"
)

// contextRecordLimit caps how much prior advisory history goes into the
// assessment prompt.
const contextRecordLimit = 50

// TaskProcessor runs one advisory task to completion.
type TaskProcessor interface {
	Process(ctx context.Context, msg queue.Message) error
}

type advisoryProcessor struct {
	backend   advisory.Backend
	proposals store.ProposalStore
	usage     store.UsageStore
	feed      realtime.Feed
}

func NewAdvisoryProcessor(backend advisory.Backend, proposals store.ProposalStore, usage store.UsageStore, feed realtime.Feed) TaskProcessor {
	return &advisoryProcessor{
		backend:   backend,
		proposals: proposals,
		usage:     usage,
		feed:      feed,
	}
}

func (p *advisoryProcessor) Process(ctx context.Context, msg queue.Message) error {
	switch msg.TaskType {
	case queue.TaskTypeProjectAssessment:
		return p.processAssessment(ctx, msg)
	case queue.TaskTypeQuestionAnswer:
		return p.processAnswer(ctx, msg)
	default:
		return fmt.Errorf("unknown task type %q", msg.TaskType)
	}
}

func (p *advisoryProcessor) processAssessment(ctx context.Context, msg queue.Message) error {
	projectContext, err := p.buildProjectContext(ctx, msg.ProjectID)
	if err != nil {
		return fmt.Errorf("building project context: %w", err)
	}

	result, err := p.backend.AssessProject(ctx, advisory.AssessRequest{
		ProjectID: msg.ProjectID,
		Context:   projectContext,
	})
	if err != nil {
		return fmt.Errorf("assessing project: %w", err)
	}

	for i := range result.Records {
		record := result.Records[i]
		record.ProjectID = msg.ProjectID
		if err := p.proposals.Create(ctx, &record); err != nil {
			return fmt.Errorf("persisting assessment record: %w", err)
		}
		p.notify(ctx, &record)
	}

	p.recordUsage(ctx, msg.ProjectID, "project_assessment", result.Usage, result.ProcessingMS)

	slog.InfoContext(ctx, "assessment completed",
		"project_id", msg.ProjectID,
		"records", len(result.Records),
		"tokens", result.Usage.TokensUsed)
	return nil
}

func (p *advisoryProcessor) processAnswer(ctx context.Context, msg queue.Message) error {
	if msg.QuestionID == nil {
		return fmt.Errorf("answer task missing question_id")
	}

	question, err := p.proposals.GetByID(ctx, *msg.QuestionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Question deleted since enqueue; nothing to answer and nothing
			// to retry.
			slog.WarnContext(ctx, "question no longer exists, skipping",
				"question_id", *msg.QuestionID)
			return nil
		}
		return fmt.Errorf("loading question: %w", err)
	}
	if question.ActivityType != model.ActivityTypeQuestion {
		return fmt.Errorf("record %d is %s, not a question", question.ID, question.ActivityType)
	}

	projectContext, err := p.buildProjectContext(ctx, msg.ProjectID)
	if err != nil {
		return fmt.Errorf("building project context: %w", err)
	}

	result, err := p.backend.AnswerQuestion(ctx, advisory.AnswerRequest{
		ProjectID:  msg.ProjectID,
		QuestionID: question.ID,
		Question:   question.Rationale,
		Context:    projectContext,
	})
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	answer := result.Answer
	answer.ProjectID = msg.ProjectID
	answer.ParentID = &question.ID
	answer.ComponentID = question.ComponentID
	if err := p.proposals.Create(ctx, &answer); err != nil {
		return fmt.Errorf("persisting answer: %w", err)
	}
	p.notify(ctx, &answer)

	p.recordUsage(ctx, msg.ProjectID, "question_answer", result.Usage, result.ProcessingMS)

	slog.InfoContext(ctx, "question answered",
		"question_id", question.ID,
		"answer_id", answer.ID)
	return nil
}

// buildProjectContext summarizes the project's existing advisory history so
// the backend does not repeat proposals that were already made or decided.
func (p *advisoryProcessor) buildProjectContext(ctx context.Context, projectID int64) (string, error) {
	records, err := p.proposals.List(ctx, store.ProposalQuery{ProjectID: projectID})
	if err != nil {
		return "", err
	}
	if len(records) > contextRecordLimit {
		records = records[:contextRecordLimit]
	}

	var b strings.Builder
	b.WriteString("Prior advisory records for this project:\n")
	if len(records) == 0 {
		b.WriteString("(none)\n")
	}
	for i := range records {
		r := &records[i]
		fmt.Fprintf(&b, "- [%s/%s] %s", r.ActivityType, r.Status, r.Rationale)
		if r.Feedback != "" {
			fmt.Fprintf(&b, " (reviewer feedback: %s)", r.Feedback)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (p *advisoryProcessor) notify(ctx context.Context, record *model.Proposal) {
	if p.feed == nil {
		return
	}
	if err := p.feed.Publish(ctx, realtime.Event{
		Kind:       realtime.EventInsert,
		ProjectID:  record.ProjectID,
		ProposalID: record.ID,
	}); err != nil {
		slog.WarnContext(ctx, "failed to publish feed event",
			"proposal_id", record.ID,
			"error", err)
	}
}

func (p *advisoryProcessor) recordUsage(ctx context.Context, projectID int64, operation string, usage model.UsageStats, latencyMS int64) {
	if p.usage == nil {
		return
	}
	if err := p.usage.Record(ctx, &model.UsageRecord{
		ProjectID:     projectID,
		Operation:     operation,
		Model:         usage.Model,
		TokensUsed:    usage.TokensUsed,
		EstimatedCost: usage.EstimatedCost,
		LatencyMS:     latencyMS,
	}); err != nil {
		slog.WarnContext(ctx, "failed to record usage",
			"project_id", projectID,
			"operation", operation,
			"error", err)
	}
}
