package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"compasshq.app/compass/common/llm"
	"compasshq.app/compass/internal/model"
)

// llmBackend implements Backend on a structured-output LLM client.
type llmBackend struct {
	client    llm.Client
	maxTokens int
}

// NewLLMBackend builds the production advisory backend.
func NewLLMBackend(client llm.Client, maxTokens int) Backend {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &llmBackend{client: client, maxTokens: maxTokens}
}

// Wire types: the schema the model fills in. Kept separate from the domain
// model so schema strictness doesn't leak into it.

type wireIssue struct {
	Field      string `json:"field"`
	IssueType  string `json:"issue_type"`
	Message    string `json:"message"`
	Severity   string `json:"severity" jsonschema:"enum=error,enum=warning,enum=info"`
	Suggestion string `json:"suggestion"`
}

type wireFieldChange struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type wireProposal struct {
	ActivityType    string            `json:"activity_type" jsonschema:"enum=proposal,enum=insight"`
	ProposalType    string            `json:"proposal_type"`
	Confidence      string            `json:"confidence" jsonschema:"enum=low,enum=medium,enum=high"`
	Rationale       string            `json:"rationale"`
	Changes         []wireFieldChange `json:"changes"`
	Evidence        []string          `json:"evidence"`
	EstimatedImpact string            `json:"estimated_impact"`
}

type wireValidation struct {
	Issues    []wireIssue    `json:"issues"`
	Proposals []wireProposal `json:"proposals"`
}

type wireAssessment struct {
	Insights []wireProposal `json:"insights"`
}

type wireAnswer struct {
	Answer   string   `json:"answer"`
	Evidence []string `json:"evidence"`
}

const validationSystemPrompt = `You are a project management assistant validating a single component
(task, risk, decision or milestone) of a project plan as the user edits it.
Flag concrete issues with the entered data and propose specific field
improvements. Be conservative: only raise issues you are confident about,
and prefer few high-value proposals over many speculative ones.`

const assessmentSystemPrompt = `You are a project management expert analyzing a software project.
Your role is to identify patterns, potential issues, and observations that
could help the project manager make better decisions.

Generate insights (not actionable proposals) - observations that are worth
noting but don't require immediate changes. Focus on patterns, risks, and
opportunities that might not be immediately obvious. Focus on the most
important 5-15 insights.`

const answerSystemPrompt = `You are a project management assistant. Answer the user's question about
their project using the provided project context. Cite specific evidence
from the context. If the context is insufficient, say so plainly.`

func (b *llmBackend) ValidateComponent(ctx context.Context, req ValidateRequest) (*model.ValidationResult, error) {
	start := time.Now()

	var wire wireValidation
	resp, err := b.client.Chat(ctx, llm.Request{
		SystemPrompt: validationSystemPrompt,
		UserPrompt:   buildValidationPrompt(req),
		SchemaName:   "component_validation",
		Schema:       llm.GenerateSchema[wireValidation](),
		MaxTokens:    b.maxTokens,
		Temperature:  llm.Temp(0.1),
	}, &wire)
	if err != nil {
		return nil, fmt.Errorf("advisory validation call: %w", err)
	}

	result := &model.ValidationResult{
		Success:      true,
		Issues:       toIssues(wire.Issues),
		Suggestions:  toProposals(wire.Proposals, req.ProjectID, req.ComponentID, req.ComponentKind),
		Usage:        b.usage(resp),
		ProcessingMS: time.Since(start).Milliseconds(),
	}

	slog.DebugContext(ctx, "component validated",
		"issues", len(result.Issues),
		"suggestions", len(result.Suggestions),
		"duration_ms", result.ProcessingMS)

	return result, nil
}

func (b *llmBackend) AssessProject(ctx context.Context, req AssessRequest) (*AssessResult, error) {
	start := time.Now()

	var wire wireAssessment
	resp, err := b.client.Chat(ctx, llm.Request{
		SystemPrompt: assessmentSystemPrompt,
		UserPrompt:   req.Context,
		SchemaName:   "project_assessment",
		Schema:       llm.GenerateSchema[wireAssessment](),
		MaxTokens:    b.maxTokens,
		Temperature:  llm.Temp(0.2),
	}, &wire)
	if err != nil {
		return nil, fmt.Errorf("advisory assessment call: %w", err)
	}

	return &AssessResult{
		Records:      toProposals(wire.Insights, req.ProjectID, nil, ""),
		Usage:        b.usage(resp),
		ProcessingMS: time.Since(start).Milliseconds(),
	}, nil
}

func (b *llmBackend) AnswerQuestion(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	start := time.Now()

	prompt := fmt.Sprintf("Question: %s\n\nProject context:\n%s", req.Question, req.Context)

	var wire wireAnswer
	resp, err := b.client.Chat(ctx, llm.Request{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   prompt,
		SchemaName:   "question_answer",
		Schema:       llm.GenerateSchema[wireAnswer](),
		MaxTokens:    b.maxTokens,
	}, &wire)
	if err != nil {
		return nil, fmt.Errorf("advisory answer call: %w", err)
	}

	evidence := wire.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	questionID := req.QuestionID

	return &AnswerResult{
		Answer: model.Proposal{
			ProjectID:    req.ProjectID,
			ActivityType: model.ActivityTypeAnswer,
			Rationale:    wire.Answer,
			Evidence:     evidence,
			ParentID:     &questionID,
			Status:       model.ProposalStatusPending,
		},
		Usage:        b.usage(resp),
		ProcessingMS: time.Since(start).Milliseconds(),
	}, nil
}

func (b *llmBackend) usage(resp *llm.Response) model.UsageStats {
	total := resp.PromptTokens + resp.CompletionTokens
	return model.UsageStats{
		TokensUsed:    total,
		EstimatedCost: estimateCost(total),
		Model:         b.client.Model(),
	}
}

// Rough blended rate; good enough for spend tracking dashboards.
const costPerKiloToken = 0.002

func estimateCost(tokens int) float64 {
	return float64(tokens) / 1000 * costPerKiloToken
}

func buildValidationPrompt(req ValidateRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Component type: %s\n", req.ComponentKind)
	fmt.Fprintf(&sb, "Validation scope: %s\n\nField data:\n", req.Scope)

	// Deterministic field order keeps prompts stable across calls.
	fields := make([]string, 0, len(req.Data))
	for f := range req.Data {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		value, err := json.Marshal(req.Data[f])
		if err != nil {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", f, value)
	}
	return sb.String()
}

func toIssues(wires []wireIssue) []model.ValidationIssue {
	issues := make([]model.ValidationIssue, 0, len(wires))
	for _, w := range wires {
		issues = append(issues, model.ValidationIssue{
			Field:      w.Field,
			IssueType:  w.IssueType,
			Message:    w.Message,
			Severity:   model.IssueSeverity(w.Severity),
			Suggestion: w.Suggestion,
		})
	}
	return issues
}

func toProposals(wires []wireProposal, projectID int64, componentID *int64, kind model.ComponentKind) []model.Proposal {
	proposals := make([]model.Proposal, 0, len(wires))
	for _, w := range wires {
		activity := model.ActivityType(w.ActivityType)
		if activity != model.ActivityTypeProposal && activity != model.ActivityTypeInsight {
			// The backend only ever proposes these two; anything else is a
			// schema escape and gets demoted to an insight.
			activity = model.ActivityTypeInsight
		}

		p := model.Proposal{
			ProjectID:       projectID,
			ComponentID:     componentID,
			ComponentKind:   kind,
			ActivityType:    activity,
			ProposalType:    w.ProposalType,
			Confidence:      model.Confidence(w.Confidence),
			Rationale:       w.Rationale,
			Evidence:        w.Evidence,
			EstimatedImpact: w.EstimatedImpact,
			Status:          model.ProposalStatusPending,
		}
		if p.Evidence == nil {
			p.Evidence = []string{}
		}
		if activity == model.ActivityTypeProposal && len(w.Changes) > 0 {
			p.Changes = make(map[string]any, len(w.Changes))
			for _, c := range w.Changes {
				p.Changes[c.Field] = c.Value
			}
		}
		proposals = append(proposals, p)
	}
	return proposals
}
