package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"compasshq.app/compass/internal/model"
	"compasshq.app/compass/internal/realtime"
	"compasshq.app/compass/internal/service"
	"compasshq.app/compass/internal/store"
)

var _ = Describe("Proposal Review", func() {
	var (
		proposalStore *mockProposalStore
		feed          *mockFeed
		svc           service.ProposalService
		published     []realtime.Event
	)

	const reviewerID = int64(900)

	pendingRecord := func(activityType model.ActivityType) *model.Proposal {
		return &model.Proposal{
			ID:           100,
			ProjectID:    7,
			ActivityType: activityType,
			Status:       model.ProposalStatusPending,
		}
	}

	BeforeEach(func() {
		published = nil
		proposalStore = &mockProposalStore{}
		feed = &mockFeed{
			publishFn: func(ctx context.Context, event realtime.Event) error {
				published = append(published, event)
				return nil
			},
		}
		svc = service.NewProposalService(proposalStore, feed)
	})

	Describe("Accept", func() {
		It("marks the record accepted when no modifications are given", func() {
			record := pendingRecord(model.ActivityTypeProposal)
			proposalStore.getByIDFn = func(ctx context.Context, id int64) (*model.Proposal, error) {
				return record, nil
			}

			var gotReview store.Review
			proposalStore.applyReviewFn = func(ctx context.Context, id int64, review store.Review) (*model.Proposal, error) {
				gotReview = review
				now := time.Now()
				updated := *record
				updated.Status = review.Status
				updated.ReviewedBy = &review.ReviewerID
				updated.ReviewedAt = &now
				return &updated, nil
			}

			updated, err := svc.Accept(context.Background(), 100, reviewerID, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(model.ProposalStatusAccepted))
			Expect(gotReview.ReviewerID).To(Equal(reviewerID))
			Expect(*updated.ReviewedBy).To(Equal(reviewerID))
		})

		It("marks the record modified when the reviewer adjusted the changes", func() {
			record := pendingRecord(model.ActivityTypeProposal)
			proposalStore.getByIDFn = func(ctx context.Context, id int64) (*model.Proposal, error) {
				return record, nil
			}
			proposalStore.applyReviewFn = func(ctx context.Context, id int64, review store.Review) (*model.Proposal, error) {
				updated := *record
				updated.Status = review.Status
				updated.Modifications = review.Modifications
				return &updated, nil
			}

			updated, err := svc.Accept(context.Background(), 100, reviewerID, map[string]any{
				"title": "Tightened title",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(model.ProposalStatusModified))
			Expect(updated.Modifications).To(HaveKeyWithValue("title", "Tightened title"))
		})

		It("refuses a zero reviewer identity", func() {
			_, err := svc.Accept(context.Background(), 100, 0, nil)
			Expect(err).To(MatchError(service.ErrUnauthenticated))
		})

		It("refuses to accept a question", func() {
			proposalStore.getByIDFn = func(ctx context.Context, id int64) (*model.Proposal, error) {
				return pendingRecord(model.ActivityTypeQuestion), nil
			}

			_, err := svc.Accept(context.Background(), 100, reviewerID, nil)
			Expect(err).To(MatchError(service.ErrActionNotAllowed))
		})

		It("surfaces a review conflict on an already decided record", func() {
			proposalStore.getByIDFn = func(ctx context.Context, id int64) (*model.Proposal, error) {
				return pendingRecord(model.ActivityTypeProposal), nil
			}
			proposalStore.applyReviewFn = func(ctx context.Context, id int64, review store.Review) (*model.Proposal, error) {
				return nil, store.ErrAlreadyReviewed
			}

			_, err := svc.Accept(context.Background(), 100, reviewerID, nil)
			Expect(err).To(MatchError(service.ErrAlreadyReviewed))
		})

		It("publishes a feed event after a successful review", func() {
			record := pendingRecord(model.ActivityTypeProposal)
			proposalStore.getByIDFn = func(ctx context.Context, id int64) (*model.Proposal, error) {
				return record, nil
			}
			proposalStore.applyReviewFn = func(ctx context.Context, id int64, review store.Review) (*model.Proposal, error) {
				updated := *record
				updated.Status = review.Status
				return &updated, nil
			}

			_, err := svc.Accept(context.Background(), 100, reviewerID, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(published).To(HaveLen(1))
			Expect(published[0].ProjectID).To(Equal(int64(7)))
			Expect(published[0].ProposalID).To(Equal(int64(100)))
		})
	})

	Describe("Reject", func() {
		It("records the reviewer's feedback", func() {
			record := pendingRecord(model.ActivityTypeInsight)
			proposalStore.getByIDFn = func(ctx context.Context, id int64) (*model.Proposal, error) {
				return record, nil
			}

			var gotReview store.Review
			proposalStore.applyReviewFn = func(ctx context.Context, id int64, review store.Review) (*model.Proposal, error) {
				gotReview = review
				updated := *record
				updated.Status = review.Status
				updated.Feedback = review.Feedback
				return &updated, nil
			}

			updated, err := svc.Reject(context.Background(), 100, reviewerID, "not relevant this sprint")
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(model.ProposalStatusRejected))
			Expect(gotReview.Feedback).To(Equal("not relevant this sprint"))
		})
	})

	Describe("Defer", func() {
		It("defers a proposal", func() {
			record := pendingRecord(model.ActivityTypeProposal)
			proposalStore.getByIDFn = func(ctx context.Context, id int64) (*model.Proposal, error) {
				return record, nil
			}
			proposalStore.applyReviewFn = func(ctx context.Context, id int64, review store.Review) (*model.Proposal, error) {
				updated := *record
				updated.Status = review.Status
				return &updated, nil
			}

			updated, err := svc.Defer(context.Background(), 100, reviewerID)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Status).To(Equal(model.ProposalStatusDeferred))
		})

		It("refuses to defer an insight", func() {
			proposalStore.getByIDFn = func(ctx context.Context, id int64) (*model.Proposal, error) {
				return pendingRecord(model.ActivityTypeInsight), nil
			}

			_, err := svc.Defer(context.Background(), 100, reviewerID)
			Expect(err).To(MatchError(service.ErrActionNotAllowed))
		})
	})

	Describe("Get", func() {
		It("maps a missing record to ErrNotFound", func() {
			proposalStore.getByIDFn = func(ctx context.Context, id int64) (*model.Proposal, error) {
				return nil, store.ErrNotFound
			}

			_, err := svc.Get(context.Background(), 404)
			Expect(err).To(MatchError(service.ErrNotFound))
		})
	})
})
