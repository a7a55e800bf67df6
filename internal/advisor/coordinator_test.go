package advisor_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"compasshq.app/compass/internal/advisor"
	"compasshq.app/compass/internal/advisory"
	"compasshq.app/compass/internal/model"
)

const testDebounce = 20 * time.Millisecond

func issueNamed(msg string) model.ValidationIssue {
	return model.ValidationIssue{
		Field:    "title",
		Message:  msg,
		Severity: model.IssueSeverityWarning,
	}
}

var _ = Describe("Coordinator", func() {
	var (
		backend     *mockBackend
		coordinator *advisor.Coordinator
	)

	newCoordinator := func() *advisor.Coordinator {
		return advisor.NewCoordinator(backend, advisor.Config{
			ProjectID:     42,
			ComponentKind: model.ComponentKindTask,
			Scope:         model.ValidationScopeSelective,
			Debounce:      testDebounce,
		})
	}

	BeforeEach(func() {
		backend = &mockBackend{}
		coordinator = newCoordinator()
	})

	AfterEach(func() {
		coordinator.Close()
	})

	Describe("ValidateField", func() {
		It("raises the analyzing flag synchronously", func() {
			started := make(chan struct{})
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				<-started
				return &model.ValidationResult{Success: true}, nil
			}

			coordinator.ValidateField("title", "Build the thing")
			Expect(coordinator.Snapshot().Analyzing).To(BeTrue())

			close(started)
			Eventually(func() bool {
				return coordinator.Snapshot().Analyzing
			}).Should(BeFalse())
		})

		It("coalesces rapid edits into one call carrying the latest value", func() {
			var calls atomic.Int32
			var mu sync.Mutex
			var lastData map[string]any
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				calls.Add(1)
				mu.Lock()
				lastData = req.Data
				mu.Unlock()
				return &model.ValidationResult{Success: true}, nil
			}

			coordinator.ValidateField("title", "B")
			coordinator.ValidateField("title", "Bu")
			coordinator.ValidateField("title", "Build")

			Eventually(func() int32 { return calls.Load() }).Should(Equal(int32(1)))
			Consistently(func() int32 { return calls.Load() }, 3*testDebounce).Should(Equal(int32(1)))

			mu.Lock()
			defer mu.Unlock()
			Expect(lastData).To(HaveKeyWithValue("title", "Build"))
		})

		It("applies results from the surviving call", func() {
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				return &model.ValidationResult{
					Success: true,
					Issues:  []model.ValidationIssue{issueNamed("too vague")},
				}, nil
			}

			coordinator.ValidateField("title", "Do stuff")

			Eventually(func() []model.ValidationIssue {
				return coordinator.Snapshot().Issues
			}).Should(HaveLen(1))
			Expect(coordinator.Snapshot().Issues[0].Message).To(Equal("too vague"))
		})

		It("never applies a slow stale response over a newer one", func() {
			var calls atomic.Int32
			release := make(chan struct{})
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				n := calls.Add(1)
				if n == 1 {
					// First call stalls until after the second settles.
					select {
					case <-release:
					case <-ctx.Done():
						return nil, ctx.Err()
					}
					return &model.ValidationResult{
						Success: true,
						Issues:  []model.ValidationIssue{issueNamed("stale")},
					}, nil
				}
				return &model.ValidationResult{
					Success: true,
					Issues:  []model.ValidationIssue{issueNamed("fresh")},
				}, nil
			}

			coordinator.ValidateField("title", "first")
			Eventually(func() int32 { return calls.Load() }).Should(Equal(int32(1)))

			coordinator.ValidateField("title", "second")
			Eventually(func() int32 { return calls.Load() }).Should(Equal(int32(2)))
			Eventually(func() []model.ValidationIssue {
				return coordinator.Snapshot().Issues
			}).Should(HaveLen(1))

			close(release)
			Consistently(func() string {
				issues := coordinator.Snapshot().Issues
				if len(issues) == 0 {
					return ""
				}
				return issues[0].Message
			}, 3*testDebounce).Should(Equal("fresh"))
		})

		It("degrades with a single warning when the backend fails", func() {
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				return nil, errors.New("upstream 503")
			}

			coordinator.ValidateField("title", "anything")

			Eventually(func() []model.ValidationIssue {
				return coordinator.Snapshot().Issues
			}).Should(HaveLen(1))

			snap := coordinator.Snapshot()
			Expect(snap.Issues[0].Field).To(Equal("general"))
			Expect(snap.Issues[0].Severity).To(Equal(model.IssueSeverityWarning))
			Expect(snap.Issues[0].Message).To(ContainSubstring("temporarily unavailable"))
			Expect(snap.Suggestions).To(BeEmpty())
			Expect(snap.Analyzing).To(BeFalse())
		})
	})

	Describe("ValidateAll", func() {
		It("calls immediately with the full snapshot", func() {
			var mu sync.Mutex
			var gotReq advisory.ValidateRequest
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				mu.Lock()
				gotReq = req
				mu.Unlock()
				return &model.ValidationResult{Success: true}, nil
			}

			result := coordinator.ValidateAll(context.Background(), map[string]any{
				"title":       "Build the thing",
				"description": "All of it",
			})

			Expect(result).NotTo(BeNil())
			Expect(result.Success).To(BeTrue())
			mu.Lock()
			defer mu.Unlock()
			Expect(gotReq.Scope).To(Equal(model.ValidationScopeFull))
			Expect(gotReq.Data).To(HaveLen(2))
		})

		It("cancels a pending debounced call", func() {
			var calls atomic.Int32
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				calls.Add(1)
				return &model.ValidationResult{Success: true}, nil
			}

			coordinator.ValidateField("title", "draft")
			coordinator.ValidateAll(context.Background(), map[string]any{"title": "draft"})

			Consistently(func() int32 { return calls.Load() }, 3*testDebounce).Should(Equal(int32(1)))
		})

		It("returns a degraded result on backend failure", func() {
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				return nil, errors.New("connection refused")
			}

			result := coordinator.ValidateAll(context.Background(), map[string]any{"title": "x"})

			Expect(result).NotTo(BeNil())
			Expect(result.Issues).To(HaveLen(1))
			Expect(result.Issues[0].Field).To(Equal("general"))
		})
	})

	Describe("Clear", func() {
		It("drops an in-flight call with no observable transition", func() {
			inFlight := make(chan struct{})
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				close(inFlight)
				<-ctx.Done()
				return nil, ctx.Err()
			}

			coordinator.ValidateField("title", "typing")
			Eventually(inFlight).Should(BeClosed())

			coordinator.Clear()

			snap := coordinator.Snapshot()
			Expect(snap.Analyzing).To(BeFalse())
			Expect(snap.Issues).To(BeEmpty())
			Expect(snap.Last).To(BeNil())

			// The aborted call must not surface as a degraded warning.
			Consistently(func() []model.ValidationIssue {
				return coordinator.Snapshot().Issues
			}, 3*testDebounce).Should(BeEmpty())
		})

		It("cancels a scheduled debounce before it fires", func() {
			var calls atomic.Int32
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				calls.Add(1)
				return &model.ValidationResult{Success: true}, nil
			}

			coordinator.ValidateField("title", "typing")
			coordinator.Clear()

			Consistently(func() int32 { return calls.Load() }, 3*testDebounce).Should(Equal(int32(0)))
		})
	})

	Describe("Close", func() {
		It("makes further calls no-ops", func() {
			var calls atomic.Int32
			backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
				calls.Add(1)
				return &model.ValidationResult{Success: true}, nil
			}

			coordinator.Close()
			coordinator.ValidateField("title", "after close")
			Expect(coordinator.ValidateAll(context.Background(), map[string]any{"a": 1})).To(BeNil())

			Consistently(func() int32 { return calls.Load() }, 3*testDebounce).Should(Equal(int32(0)))
		})
	})
})

var _ = Describe("Registry", func() {
	var (
		backend  *mockBackend
		registry *advisor.Registry
	)

	BeforeEach(func() {
		backend = &mockBackend{}
		registry = advisor.NewRegistry(backend)
	})

	AfterEach(func() {
		registry.Shutdown()
	})

	It("returns the same coordinator for the same session key", func() {
		cfg := advisor.Config{ProjectID: 1, ComponentKind: model.ComponentKindTask}
		first := registry.Acquire("sess-1", cfg)
		second := registry.Acquire("sess-1", cfg)
		Expect(first).To(BeIdenticalTo(second))
	})

	It("separates coordinators by session key", func() {
		cfg := advisor.Config{ProjectID: 1, ComponentKind: model.ComponentKindTask}
		first := registry.Acquire("sess-1", cfg)
		second := registry.Acquire("sess-2", cfg)
		Expect(first).NotTo(BeIdenticalTo(second))
	})

	It("closes the coordinator on release", func() {
		cfg := advisor.Config{ProjectID: 1, ComponentKind: model.ComponentKindTask, Debounce: testDebounce}
		c := registry.Acquire("sess-1", cfg)
		registry.Release("sess-1")

		var calls atomic.Int32
		backend.validateFn = func(ctx context.Context, req advisory.ValidateRequest) (*model.ValidationResult, error) {
			calls.Add(1)
			return &model.ValidationResult{Success: true}, nil
		}
		c.ValidateField("title", "after release")
		Consistently(func() int32 { return calls.Load() }, 3*testDebounce).Should(Equal(int32(0)))
	})
})
