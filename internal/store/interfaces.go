package store

import (
	"context"
	"errors"
	"time"

	"compasshq.app/compass/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrAlreadyReviewed is returned when a lifecycle transition targets a record
// that has already reached a terminal status. Review metadata is never
// silently overwritten.
var ErrAlreadyReviewed = errors.New("proposal already reviewed")

// ProposalQuery scopes and filters a proposal listing. ProjectID is required;
// everything else narrows the result set. Results are ordered by creation
// time, newest first.
type ProposalQuery struct {
	ProjectID     int64
	ComponentID   *int64
	ComponentKind model.ComponentKind
	Statuses      []model.ProposalStatus
	Confidences   []model.Confidence
	ProposalTypes []string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Review captures one reviewer disposition applied to a pending record.
type Review struct {
	Status        model.ProposalStatus
	ReviewerID    int64
	Feedback      string         // set on reject, empty otherwise
	Modifications map[string]any // set on modify, nil otherwise
}

// ProposalStore defines the contract for advisory record data access.
// The review transition is the sole writer of status/reviewed_*/feedback/
// modifications; no other mutation path exists.
type ProposalStore interface {
	Create(ctx context.Context, p *model.Proposal) error
	GetByID(ctx context.Context, id int64) (*model.Proposal, error)
	List(ctx context.Context, q ProposalQuery) ([]model.Proposal, error)
	// ApplyReview atomically moves a pending record to a terminal status.
	// Returns ErrAlreadyReviewed if the record is no longer pending and
	// ErrNotFound if it does not exist.
	ApplyReview(ctx context.Context, id int64, review Review) (*model.Proposal, error)
}

// UsageStore records token/cost accounting for advisory calls.
type UsageStore interface {
	Record(ctx context.Context, u *model.UsageRecord) error
}
