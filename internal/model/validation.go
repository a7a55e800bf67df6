package model

type IssueSeverity string

const (
	IssueSeverityError   IssueSeverity = "error"
	IssueSeverityWarning IssueSeverity = "warning"
	IssueSeverityInfo    IssueSeverity = "info"
)

type ValidationScope string

const (
	ValidationScopeRulesOnly ValidationScope = "rules_only"
	ValidationScopeSelective ValidationScope = "selective"
	ValidationScopeFull      ValidationScope = "full"
)

// ValidationIssue is a transient finding from a validation call.
// Issues are never persisted; they are discarded on the next call or on clear.
type ValidationIssue struct {
	Field      string        `json:"field"`
	IssueType  string        `json:"issue_type,omitempty"`
	Message    string        `json:"message"`
	Severity   IssueSeverity `json:"severity"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// UsageStats carries token and cost accounting for an advisory call.
type UsageStats struct {
	TokensUsed    int     `json:"tokens_used"`
	EstimatedCost float64 `json:"estimated_cost"`
	Model         string  `json:"model"`
}

// ValidationResult is the outcome of a single validation call: the issues
// found, the records the backend proposed (not yet persisted), and usage
// metadata for observability.
type ValidationResult struct {
	Success      bool              `json:"success"`
	Issues       []ValidationIssue `json:"issues"`
	Suggestions  []Proposal        `json:"suggestions"`
	Usage        UsageStats        `json:"usage_stats"`
	ProcessingMS int64             `json:"processing_time_ms"`
}
