package model

import "time"

// UsageRecord is one advisory call's token and cost accounting, kept for
// spend reporting per project.
type UsageRecord struct {
	ID            int64     `json:"id"`
	ProjectID     int64     `json:"project_id"`
	Operation     string    `json:"operation"` // "validate", "assess", "answer"
	Model         string    `json:"model"`
	TokensUsed    int       `json:"tokens_used"`
	EstimatedCost float64   `json:"estimated_cost"`
	LatencyMS     int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
}
