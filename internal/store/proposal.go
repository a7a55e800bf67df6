package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"compasshq.app/compass/common/id"
	"compasshq.app/compass/internal/model"
)

// Querier is satisfied by pgxpool.Pool and pgx.Tx, so the same store works
// inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type proposalStore struct {
	q Querier
}

func newProposalStore(q Querier) ProposalStore {
	return &proposalStore{q: q}
}

const proposalColumns = `id, project_id, component_id, component_kind, activity_type,
	proposal_type, confidence, rationale, changes, evidence, estimated_impact,
	parent_id, status, reviewed_by, reviewed_at, feedback, modifications, created_at`

func (s *proposalStore) Create(ctx context.Context, p *model.Proposal) error {
	if p.ID == 0 {
		p.ID = id.New()
	}
	if p.Status == "" {
		p.Status = model.ProposalStatusPending
	}

	changes, err := marshalOptional(p.Changes)
	if err != nil {
		return fmt.Errorf("encoding changes: %w", err)
	}
	evidence, err := json.Marshal(p.Evidence)
	if err != nil {
		return fmt.Errorf("encoding evidence: %w", err)
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO proposals (id, project_id, component_id, component_kind, activity_type,
			proposal_type, confidence, rationale, changes, evidence, estimated_impact,
			parent_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+proposalColumns,
		p.ID, p.ProjectID, p.ComponentID, nullableString(string(p.ComponentKind)),
		string(p.ActivityType), nullableString(p.ProposalType), nullableString(string(p.Confidence)),
		p.Rationale, changes, evidence, nullableString(p.EstimatedImpact),
		p.ParentID, string(p.Status),
	)

	created, err := scanProposal(ctx, row)
	if err != nil {
		return fmt.Errorf("creating proposal: %w", err)
	}
	*p = *created
	return nil
}

func (s *proposalStore) GetByID(ctx context.Context, proposalID int64) (*model.Proposal, error) {
	row := s.q.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, proposalID)
	p, err := scanProposal(ctx, row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *proposalStore) List(ctx context.Context, q ProposalQuery) ([]model.Proposal, error) {
	sql, args := buildListQuery(q)

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}
	defer rows.Close()

	var proposals []model.Proposal
	for rows.Next() {
		p, err := scanProposal(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("scanning proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading proposals: %w", err)
	}
	return proposals, nil
}

// buildListQuery assembles the scoped, filtered select. Filters are ANDed;
// empty filter sets are skipped.
func buildListQuery(q ProposalQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + proposalColumns + ` FROM proposals WHERE project_id = $1`)
	args := []any{q.ProjectID}

	next := func() string {
		return fmt.Sprintf("$%d", len(args)+1)
	}

	if q.ComponentID != nil {
		sb.WriteString(` AND component_id = ` + next())
		args = append(args, *q.ComponentID)
	}
	if q.ComponentKind != "" {
		sb.WriteString(` AND component_kind = ` + next())
		args = append(args, string(q.ComponentKind))
	}
	if len(q.Statuses) > 0 {
		sb.WriteString(` AND status = ANY(` + next() + `)`)
		args = append(args, statusStrings(q.Statuses))
	}
	if len(q.Confidences) > 0 {
		sb.WriteString(` AND confidence = ANY(` + next() + `)`)
		args = append(args, confidenceStrings(q.Confidences))
	}
	if len(q.ProposalTypes) > 0 {
		sb.WriteString(` AND proposal_type = ANY(` + next() + `)`)
		args = append(args, q.ProposalTypes)
	}
	if q.CreatedAfter != nil {
		sb.WriteString(` AND created_at >= ` + next())
		args = append(args, *q.CreatedAfter)
	}
	if q.CreatedBefore != nil {
		sb.WriteString(` AND created_at <= ` + next())
		args = append(args, *q.CreatedBefore)
	}

	sb.WriteString(` ORDER BY created_at DESC`)
	return sb.String(), args
}

func (s *proposalStore) ApplyReview(ctx context.Context, proposalID int64, review Review) (*model.Proposal, error) {
	modifications, err := marshalOptional(review.Modifications)
	if err != nil {
		return nil, fmt.Errorf("encoding modifications: %w", err)
	}

	// Guarded by status='pending': a concurrent transition loses the race and
	// surfaces as a conflict instead of overwriting review metadata.
	row := s.q.QueryRow(ctx, `
		UPDATE proposals
		SET status = $2, reviewed_by = $3, reviewed_at = now(),
			feedback = $4, modifications = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING `+proposalColumns,
		proposalID, string(review.Status), review.ReviewerID,
		nullableString(review.Feedback), modifications,
	)

	p, err := scanProposal(ctx, row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("applying review: %w", err)
	}

	// No pending row matched: distinguish missing from already-terminal.
	if _, getErr := s.GetByID(ctx, proposalID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrAlreadyReviewed
}

// scanProposal reads one row into the model. A malformed changes or evidence
// blob degrades that field to absent/empty instead of failing the whole listing.
func scanProposal(ctx context.Context, row pgx.Row) (*model.Proposal, error) {
	var (
		p               model.Proposal
		componentKind   *string
		proposalType    *string
		confidence      *string
		changesRaw      []byte
		evidenceRaw     []byte
		estimatedImpact *string
		feedback        *string
		modificationsRaw []byte
	)

	err := row.Scan(
		&p.ID, &p.ProjectID, &p.ComponentID, &componentKind, &p.ActivityType,
		&proposalType, &confidence, &p.Rationale, &changesRaw, &evidenceRaw,
		&estimatedImpact, &p.ParentID, &p.Status, &p.ReviewedBy, &p.ReviewedAt,
		&feedback, &modificationsRaw, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if componentKind != nil {
		p.ComponentKind = model.ComponentKind(*componentKind)
	}
	if proposalType != nil {
		p.ProposalType = *proposalType
	}
	if confidence != nil {
		p.Confidence = model.Confidence(*confidence)
	}
	if estimatedImpact != nil {
		p.EstimatedImpact = *estimatedImpact
	}
	if feedback != nil {
		p.Feedback = *feedback
	}

	// Changes are authoritative only for proposals.
	if p.ActivityType == model.ActivityTypeProposal {
		p.Changes = unmarshalObject(ctx, p.ID, "changes", changesRaw)
	}
	p.Evidence = unmarshalStrings(ctx, p.ID, evidenceRaw)
	p.Modifications = unmarshalObject(ctx, p.ID, "modifications", modificationsRaw)

	return &p, nil
}

func unmarshalObject(ctx context.Context, proposalID int64, field string, raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.WarnContext(ctx, "dropping malformed proposal payload",
			"proposal_id", proposalID, "field", field, "error", err)
		return nil
	}
	return out
}

func unmarshalStrings(ctx context.Context, proposalID int64, raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		slog.WarnContext(ctx, "dropping malformed proposal payload",
			"proposal_id", proposalID, "field", "evidence", "error", err)
		return []string{}
	}
	return out
}

func marshalOptional(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func statusStrings(statuses []model.ProposalStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func confidenceStrings(confidences []model.Confidence) []string {
	out := make([]string, len(confidences))
	for i, c := range confidences {
		out[i] = string(c)
	}
	return out
}
