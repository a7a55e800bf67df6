package store

import (
	"context"
	"fmt"

	"compasshq.app/compass/common/id"
	"compasshq.app/compass/internal/model"
)

type usageStore struct {
	q Querier
}

func newUsageStore(q Querier) UsageStore {
	return &usageStore{q: q}
}

func (s *usageStore) Record(ctx context.Context, u *model.UsageRecord) error {
	if u.ID == 0 {
		u.ID = id.New()
	}

	err := s.q.QueryRow(ctx, `
		INSERT INTO advisory_usage (id, project_id, operation, model, tokens_used, estimated_cost, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		u.ID, u.ProjectID, u.Operation, u.Model, u.TokensUsed, u.EstimatedCost, u.LatencyMS,
	).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording advisory usage: %w", err)
	}
	return nil
}
