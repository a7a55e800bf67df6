package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"compasshq.app/compass/internal/model"
	"compasshq.app/compass/internal/queue"
	"compasshq.app/compass/internal/service"
)

var _ = Describe("Question Service", func() {
	var (
		proposalStore *mockProposalStore
		producer      *mockProducer
		svc           service.QuestionService
	)

	BeforeEach(func() {
		proposalStore = &mockProposalStore{}
		producer = &mockProducer{}
		svc = service.NewQuestionService(proposalStore, service.NewAssessmentService(producer))
	})

	It("persists the question and enqueues an answer task", func() {
		var created *model.Proposal
		proposalStore.createFn = func(ctx context.Context, p *model.Proposal) error {
			created = p
			return nil
		}
		var enqueued []queue.Task
		producer.enqueueFn = func(ctx context.Context, task queue.Task) error {
			enqueued = append(enqueued, task)
			return nil
		}

		question, err := svc.Ask(context.Background(), 7, nil, "What is blocking the rollout?")
		Expect(err).NotTo(HaveOccurred())
		Expect(question.ActivityType).To(Equal(model.ActivityTypeQuestion))
		Expect(question.Status).To(Equal(model.ProposalStatusPending))
		Expect(created).To(BeIdenticalTo(question))

		Expect(enqueued).To(HaveLen(1))
		Expect(enqueued[0].TaskType).To(Equal(queue.TaskTypeQuestionAnswer))
		Expect(enqueued[0].ProjectID).To(Equal(int64(7)))
		Expect(*enqueued[0].QuestionID).To(Equal(question.ID))
	})

	It("rejects an empty question", func() {
		_, err := svc.Ask(context.Background(), 7, nil, "   ")
		Expect(err).To(MatchError(service.ErrEmptyQuestion))
	})

	It("keeps the question when the enqueue fails", func() {
		proposalStore.createFn = func(ctx context.Context, p *model.Proposal) error { return nil }
		producer.enqueueFn = func(ctx context.Context, task queue.Task) error {
			return errors.New("redis down")
		}

		question, err := svc.Ask(context.Background(), 7, nil, "Is the deadline realistic?")
		Expect(err).NotTo(HaveOccurred())
		Expect(question).NotTo(BeNil())
	})

	It("propagates a storage failure", func() {
		proposalStore.createFn = func(ctx context.Context, p *model.Proposal) error {
			return errors.New("insert failed")
		}

		_, err := svc.Ask(context.Background(), 7, nil, "Anything?")
		Expect(err).To(HaveOccurred())
	})
})
