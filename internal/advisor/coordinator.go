// Package advisor turns rapid user edits into a bounded rate of advisory
// calls. The coordinator debounces per-field validation, cancels superseded
// requests, and guarantees that only the most recent surviving call's results
// are ever applied.
package advisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"compasshq.app/compass/internal/advisory"
	"compasshq.app/compass/internal/model"
)

const defaultDebounce = time.Second

// Degraded-mode issue raised when the advisory backend is unreachable.
// Validation must never block the user's primary workflow.
var unavailableIssue = model.ValidationIssue{
	Field:    "general",
	Message:  "AI validation is temporarily unavailable. Your input will be saved without AI suggestions.",
	Severity: model.IssueSeverityWarning,
}

// Config scopes a coordinator to one component being edited.
type Config struct {
	ProjectID     int64
	ComponentKind model.ComponentKind
	ComponentID   *int64
	Scope         model.ValidationScope
	Debounce      time.Duration
}

// Snapshot is the coordinator state exposed to consumers.
type Snapshot struct {
	Analyzing   bool                    `json:"analyzing"`
	Issues      []model.ValidationIssue `json:"issues"`
	Suggestions []model.Proposal        `json:"suggestions"`
	Last        *model.ValidationResult `json:"last_validation,omitempty"`
}

// Coordinator coordinates validation calls for a single edit session.
// At most one request is live at a time: issuing a new one invalidates the
// previous request's token, so a slow earlier response can never overwrite
// the outcome of a later input.
type Coordinator struct {
	backend  advisory.Backend
	cfg      Config
	debounce time.Duration

	mu          sync.Mutex
	timer       *time.Timer
	timerSeq    uint64 // invalidates a stopped timer that already fired
	reqGen      uint64 // single-slot request ownership token
	cancel      context.CancelFunc
	analyzing   bool
	issues      []model.ValidationIssue
	suggestions []model.Proposal
	last        *model.ValidationResult
	closed      bool

	pendingField string
	pendingValue any
}

func NewCoordinator(backend advisory.Backend, cfg Config) *Coordinator {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Coordinator{
		backend:  backend,
		cfg:      cfg,
		debounce: debounce,
	}
}

// ValidateField schedules a debounced validation of one field. Calling again
// before the window elapses replaces the scheduled field/value pair; only the
// latest pair is sent. The analyzing flag is raised synchronously.
func (c *Coordinator) ValidateField(field string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.analyzing = true
	c.pendingField = field
	c.pendingValue = value

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerSeq++
	seq := c.timerSeq

	c.timer = time.AfterFunc(c.debounce, func() {
		c.fire(seq)
	})
}

// fire runs when a debounce window closes. A stale seq means the timer was
// superseded between firing and acquiring the lock; it does nothing.
func (c *Coordinator) fire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || seq != c.timerSeq {
		return
	}

	data := map[string]any{c.pendingField: c.pendingValue}
	gen, ctx := c.claimRequestLocked(context.Background())

	go func() {
		result, err := c.backend.ValidateComponent(ctx, advisory.ValidateRequest{
			ProjectID:     c.cfg.ProjectID,
			ComponentKind: c.cfg.ComponentKind,
			ComponentID:   c.cfg.ComponentID,
			Data:          data,
			Scope:         c.cfg.Scope,
		})
		c.settle(ctx, gen, result, err)
	}()
}

// ValidateAll bypasses the debounce and validates the complete field set
// immediately. Used before a final submit, where up-to-date cross-field
// results are required and latency is acceptable. The returned result is the
// caller's own; it is applied to the shared state only if no later request
// superseded this one.
func (c *Coordinator) ValidateAll(ctx context.Context, snapshot map[string]any) *model.ValidationResult {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.stopTimerLocked()
	c.analyzing = true
	gen, reqCtx := c.claimRequestLocked(ctx)
	c.mu.Unlock()

	result, err := c.backend.ValidateComponent(reqCtx, advisory.ValidateRequest{
		ProjectID:     c.cfg.ProjectID,
		ComponentKind: c.cfg.ComponentKind,
		ComponentID:   c.cfg.ComponentID,
		Data:          snapshot,
		Scope:         model.ValidationScopeFull,
	})
	c.settle(reqCtx, gen, result, err)

	if err != nil {
		if reqCtx.Err() != nil {
			return nil // superseded or cleared; silently dropped
		}
		return degradedResult()
	}
	return result
}

// Clear cancels any pending debounce timer, aborts any in-flight call, and
// resets all exposed state. The abort is silent: the aborted call produces no
// observable transition.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Close tears the coordinator down. No timer or request survives it; further
// calls are no-ops.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.closed = true
}

// Snapshot returns the current exposed state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Analyzing:   c.analyzing,
		Issues:      make([]model.ValidationIssue, len(c.issues)),
		Suggestions: make([]model.Proposal, len(c.suggestions)),
		Last:        c.last,
	}
	copy(snap.Issues, c.issues)
	copy(snap.Suggestions, c.suggestions)
	return snap
}

// claimRequestLocked takes ownership of the single request slot: it bumps the
// generation token and aborts the previous in-flight call, if any.
func (c *Coordinator) claimRequestLocked(parent context.Context) (uint64, context.Context) {
	c.reqGen++
	gen := c.reqGen

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	return gen, ctx
}

// settle applies a finished call's outcome, unless the call lost ownership of
// the request slot in the meantime. A cancelled call is dropped with no state
// change at all.
func (c *Coordinator) settle(ctx context.Context, gen uint64, result *model.ValidationResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.reqGen {
		return
	}

	c.analyzing = false
	c.cancel = nil

	if err != nil {
		if ctx.Err() != nil {
			// Aborted by Clear/Close racing the generation check; still silent.
			return
		}
		slog.WarnContext(ctx, "advisory validation degraded",
			"project_id", c.cfg.ProjectID, "error", err)
		degraded := degradedResult()
		c.issues = degraded.Issues
		c.suggestions = nil
		c.last = degraded
		return
	}

	c.issues = result.Issues
	c.suggestions = result.Suggestions
	c.last = result
}

func (c *Coordinator) resetLocked() {
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.reqGen++ // orphan any in-flight call
	c.analyzing = false
	c.issues = nil
	c.suggestions = nil
	c.last = nil
	c.pendingField = ""
	c.pendingValue = nil
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

func degradedResult() *model.ValidationResult {
	return &model.ValidationResult{
		Success:     true,
		Issues:      []model.ValidationIssue{unavailableIssue},
		Suggestions: []model.Proposal{},
		Usage:       model.UsageStats{Model: "unavailable"},
	}
}
