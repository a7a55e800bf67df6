package model

import "time"

type ActivityType string

const (
	ActivityTypeProposal ActivityType = "proposal" // actionable suggested change
	ActivityTypeInsight  ActivityType = "insight"  // non-actionable observation
	ActivityTypeQuestion ActivityType = "question" // user-submitted question
	ActivityTypeAnswer   ActivityType = "answer"   // advisory answer to a question
)

type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusModified ProposalStatus = "modified"
	ProposalStatusRejected ProposalStatus = "rejected"
	ProposalStatusDeferred ProposalStatus = "deferred"
)

// Terminal reports whether the status admits no further transitions.
func (s ProposalStatus) Terminal() bool {
	switch s {
	case ProposalStatusAccepted, ProposalStatusModified, ProposalStatusRejected, ProposalStatusDeferred:
		return true
	}
	return false
}

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type ComponentKind string

const (
	ComponentKindTask      ComponentKind = "task"
	ComponentKindRisk      ComponentKind = "risk"
	ComponentKindDecision  ComponentKind = "decision"
	ComponentKindMilestone ComponentKind = "milestone"
)

// Well-known proposal categories produced by the advisory backend.
// The field is free-form; these are the categories the backend is prompted with.
const (
	ProposalTypeFieldImprovement       = "field_improvement"
	ProposalTypeMissingInformation     = "missing_information"
	ProposalTypeStatusConflict         = "status_conflict"
	ProposalTypeComponentCreation      = "component_creation"
	ProposalTypeRelationshipSuggestion = "relationship_suggestion"
	ProposalTypeDocumentBased          = "document_based"
)

// Proposal is the unit of advisory work: a suggested change, an observation,
// a question, or an answer, carried from creation through reviewer disposition.
type Proposal struct {
	ID            int64          `json:"id"`
	ProjectID     int64          `json:"project_id"`
	ComponentID   *int64         `json:"component_id,omitempty"`
	ComponentKind ComponentKind  `json:"component_kind,omitempty"`
	ActivityType  ActivityType   `json:"activity_type"`
	ProposalType  string         `json:"proposal_type,omitempty"`
	Confidence    Confidence     `json:"confidence,omitempty"`
	Rationale     string         `json:"rationale"`

	// Changes is meaningful only for ActivityTypeProposal; the store
	// normalizes it to nil for every other activity type.
	Changes  map[string]any `json:"changes,omitempty"`
	Evidence []string       `json:"evidence"`

	EstimatedImpact string `json:"estimated_impact,omitempty"`

	// ParentID links an answer back to its question.
	ParentID *int64 `json:"parent_id,omitempty"`

	Status        ProposalStatus `json:"status"`
	ReviewedBy    *int64         `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	Feedback      string         `json:"feedback,omitempty"`
	Modifications map[string]any `json:"modifications,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Pending reports whether the record still needs reviewer attention.
// Answers are informational and never contribute to an actionable backlog,
// even while nominally pending.
func (p Proposal) Pending() bool {
	return p.Status == ProposalStatusPending && p.ActivityType != ActivityTypeAnswer
}
