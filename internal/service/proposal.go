package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"compasshq.app/compass/internal/model"
	"compasshq.app/compass/internal/realtime"
	"compasshq.app/compass/internal/store"
)

var (
	ErrUnauthenticated  = errors.New("reviewer identity required")
	ErrActionNotAllowed = errors.New("action not allowed for this activity type")
	ErrAlreadyReviewed  = errors.New("record has already been reviewed")
	ErrNotFound         = errors.New("record not found")
)

// ProposalService carries the review lifecycle for AI-generated records.
// Every decision requires an authenticated reviewer and lands exactly once:
// a record that has left pending can never be reviewed again.
type ProposalService interface {
	Get(ctx context.Context, id int64) (*model.Proposal, error)
	List(ctx context.Context, query store.ProposalQuery) ([]model.Proposal, error)
	// Accept approves a record. Non-empty modifications mark the record
	// modified instead of accepted, recording that the reviewer adjusted the
	// proposed changes before applying them.
	Accept(ctx context.Context, id, reviewerID int64, modifications map[string]any) (*model.Proposal, error)
	Reject(ctx context.Context, id, reviewerID int64, feedback string) (*model.Proposal, error)
	Defer(ctx context.Context, id, reviewerID int64) (*model.Proposal, error)
}

type proposalService struct {
	proposals store.ProposalStore
	feed      realtime.Feed
}

func NewProposalService(proposals store.ProposalStore, feed realtime.Feed) ProposalService {
	return &proposalService{
		proposals: proposals,
		feed:      feed,
	}
}

func (s *proposalService) Get(ctx context.Context, id int64) (*model.Proposal, error) {
	record, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching record: %w", err)
	}
	return record, nil
}

func (s *proposalService) List(ctx context.Context, query store.ProposalQuery) ([]model.Proposal, error) {
	records, err := s.proposals.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

func (s *proposalService) Accept(ctx context.Context, id, reviewerID int64, modifications map[string]any) (*model.Proposal, error) {
	status := model.ProposalStatusAccepted
	action := model.ReviewActionAccept
	if len(modifications) > 0 {
		status = model.ProposalStatusModified
		action = model.ReviewActionModify
	}

	return s.review(ctx, id, reviewerID, action, store.Review{
		Status:        status,
		ReviewerID:    reviewerID,
		Modifications: modifications,
	})
}

func (s *proposalService) Reject(ctx context.Context, id, reviewerID int64, feedback string) (*model.Proposal, error) {
	return s.review(ctx, id, reviewerID, model.ReviewActionReject, store.Review{
		Status:     model.ProposalStatusRejected,
		ReviewerID: reviewerID,
		Feedback:   feedback,
	})
}

func (s *proposalService) Defer(ctx context.Context, id, reviewerID int64) (*model.Proposal, error) {
	return s.review(ctx, id, reviewerID, model.ReviewActionDefer, store.Review{
		Status:     model.ProposalStatusDeferred,
		ReviewerID: reviewerID,
	})
}

func (s *proposalService) review(ctx context.Context, id, reviewerID int64, action model.ReviewAction, review store.Review) (*model.Proposal, error) {
	if reviewerID == 0 {
		return nil, ErrUnauthenticated
	}

	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !model.ActionAllowed(record.ActivityType, action) {
		return nil, fmt.Errorf("%w: %s on %s", ErrActionNotAllowed, action, record.ActivityType)
	}

	updated, err := s.proposals.ApplyReview(ctx, id, review)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyReviewed):
			return nil, ErrAlreadyReviewed
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("applying review: %w", err)
	}

	slog.InfoContext(ctx, "record reviewed",
		"proposal_id", updated.ID,
		"project_id", updated.ProjectID,
		"status", updated.Status,
		"reviewer_id", reviewerID,
	)

	s.publish(ctx, updated)
	return updated, nil
}

// publish notifies feed subscribers. Delivery is best effort; the review is
// already durable and a poll will catch up.
func (s *proposalService) publish(ctx context.Context, record *model.Proposal) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, realtime.Event{
		Kind:       realtime.EventUpdate,
		ProjectID:  record.ProjectID,
		ProposalID: record.ID,
	}); err != nil {
		slog.WarnContext(ctx, "failed to publish feed event",
			"proposal_id", record.ID,
			"error", err)
	}
}
