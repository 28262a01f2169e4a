package luzidos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Actor names recorded in audit entries for engine-driven transitions.
const (
	ActorInit     = "INIT"
	ActorTimebomb = "TIMEBOMB"
)

// InvocationFunc is one turn of agent work. It receives the current state and
// returns a partial state update to deep-merge, or nil for no change. It runs
// with the execution lock held.
type InvocationFunc func(ctx context.Context, state *WorkflowState) (map[string]any, error)

// RuntimeOptions configures a new Runtime.
type RuntimeOptions struct {
	Repository *StateRepository
	Lock       *ExecutionLock
	Audit      *AuditLog
	Registry   *ProcessRegistry
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Runtime serializes agent turns over workflow state: every invocation runs
// under the execution lock, merges its update through the repository, and
// records the transition in the audit log. Invocations are stateless between
// turns; everything the agent knows lives in the state document.
type Runtime struct {
	repo     *StateRepository
	lock     *ExecutionLock
	audit    *AuditLog
	registry *ProcessRegistry
	logger   *slog.Logger
	clock    func() time.Time
}

// NewRuntime creates a runtime from its collaborators.
func NewRuntime(opts RuntimeOptions) (*Runtime, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("state repository is required")
	}
	if opts.Lock == nil {
		return nil, fmt.Errorf("execution lock is required")
	}
	if opts.Audit == nil {
		return nil, fmt.Errorf("audit log is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("process registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Runtime{
		repo:     opts.Repository,
		lock:     opts.Lock,
		audit:    opts.Audit,
		registry: opts.Registry,
		logger:   opts.Logger,
		clock:    opts.Clock,
	}, nil
}

// InitAgent creates the documents of a new workflow instance: initial state,
// an unlocked lock flag, an empty audit log, and an open registry entry. The
// first audit entry records the birth.
func (r *Runtime) InitAgent(ctx context.Context, id WorkflowID) (*WorkflowState, error) {
	state := InitialState(r.clock())
	if err := r.repo.SaveState(ctx, id, state); err != nil {
		return nil, err
	}
	if err := r.lock.Init(ctx, id); err != nil {
		return nil, err
	}
	if err := r.audit.Init(ctx, id); err != nil {
		return nil, err
	}
	doc, err := state.Document()
	if err != nil {
		return nil, err
	}
	if err := r.audit.Append(ctx, id, ActorInit, doc); err != nil {
		return nil, err
	}
	if err := r.registry.MarkOpen(ctx, id); err != nil {
		return nil, err
	}
	r.logger.Info("agent initialized", "workflow_id", id.String())
	return state, nil
}

// Invoke runs one agent turn under the execution lock. If the lock is held
// elsewhere the turn fails with lock_busy and no state is touched. The lock
// is released on every exit path, including errors from fn.
func (r *Runtime) Invoke(ctx context.Context, id WorkflowID, actor string, fn InvocationFunc) (*WorkflowState, error) {
	acquired, err := r.lock.TryAcquire(ctx, id)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, NewAgentError(ErrorTypeLockBusy,
			fmt.Sprintf("workflow %q is already executing", id.String()))
	}
	defer func() {
		if err := r.lock.Release(ctx, id); err != nil {
			r.logger.Error("execution lock release failed",
				"workflow_id", id.String(), "error", err)
		}
	}()

	state, err := r.repo.LoadState(ctx, id)
	if err != nil {
		return nil, err
	}
	update, err := fn(ctx, state)
	if err != nil {
		return nil, err
	}
	if update == nil {
		return state, nil
	}

	merged, err := r.repo.MergeState(ctx, id, update)
	if err != nil {
		return nil, err
	}
	if err := r.audit.Append(ctx, id, actor, update); err != nil {
		return nil, err
	}
	r.logger.Info("agent turn applied",
		"workflow_id", id.String(),
		"actor", actor,
		"current_state", merged.State.Metadata.CurrentState)
	return merged, nil
}

// HandleTimebomb applies a fired deferred trigger. The payload's record must
// still be ACTIVE in state; a CANCELLED or already TRIGGERED record means the
// firing lost a race with cancellation and the update is dropped. On apply,
// the record transitions to TRIGGERED in the same merge as the payload's
// state update.
func (r *Runtime) HandleTimebomb(ctx context.Context, payload *ResumptionPayload) (*WorkflowState, error) {
	id := payload.WorkflowID()
	return r.Invoke(ctx, id, ActorTimebomb, func(ctx context.Context, state *WorkflowState) (map[string]any, error) {
		record, ok := state.Timebomb(payload.Metadata.ThreadID, payload.Metadata.TimebombID)
		if !ok {
			r.logger.Warn("fired timebomb has no record, dropping",
				"workflow_id", id.String(),
				"timebomb_id", payload.Metadata.TimebombID)
			return nil, nil
		}
		if record.Status != TimebombActive {
			r.logger.Info("fired timebomb no longer active, dropping",
				"workflow_id", id.String(),
				"timebomb_id", payload.Metadata.TimebombID,
				"status", record.Status)
			return nil, nil
		}

		update := map[string]any{}
		if payload.StateUpdate != nil {
			update = DeepMerge(update, payload.StateUpdate)
		}
		return DeepMerge(update, map[string]any{
			"state": map[string]any{
				"metadata": map[string]any{
					"timebombs": map[string]any{
						payload.Metadata.ThreadID: map[string]any{
							payload.Metadata.TimebombID: map[string]any{
								"status": string(TimebombTriggered),
							},
						},
					},
				},
			},
		}), nil
	})
}
