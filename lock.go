package luzidos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// LockDocument is the stored lock flag for one workflow instance. The
// acquisition timestamp lets holders that crashed without releasing be
// reclaimed after the TTL elapses.
type LockDocument struct {
	Locked     bool      `json:"locked"`
	AcquiredAt time.Time `json:"acquired_at,omitzero"`
	Owner      string    `json:"owner,omitempty"`
}

// ExecutionLockOptions configures a new ExecutionLock.
type ExecutionLockOptions struct {
	Store DocumentStore

	// TTL after which a held lock counts as stale and may be reclaimed.
	// Zero disables reclaim.
	TTL time.Duration

	// Owner is recorded in the lock document for diagnostics.
	Owner string

	Logger *slog.Logger
	Clock  func() time.Time
}

// ExecutionLock is the advisory per-workflow mutual-exclusion flag. When the
// store implements DocumentCAS, acquisition is a true compare-and-swap;
// otherwise it degrades to read-then-write and concurrent acquirers can both
// observe success, which downstream effects must tolerate.
type ExecutionLock struct {
	store  DocumentStore
	ttl    time.Duration
	owner  string
	logger *slog.Logger
	clock  func() time.Time
}

// NewExecutionLock creates a lock manager over the given store.
func NewExecutionLock(opts ExecutionLockOptions) (*ExecutionLock, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &ExecutionLock{
		store:  opts.Store,
		ttl:    opts.TTL,
		owner:  opts.Owner,
		logger: opts.Logger,
		clock:  opts.Clock,
	}, nil
}

// TryAcquire attempts to take the lock for the workflow. It returns false
// without error when the lock is already held. Every successful acquisition
// must be paired with Release on all exit paths.
func (l *ExecutionLock) TryAcquire(ctx context.Context, id WorkflowID) (bool, error) {
	path := InvoiceLockPath(id)
	previous, current, err := l.read(ctx, path)
	if err != nil {
		return false, err
	}
	if current.Locked && !l.stale(current) {
		return false, nil
	}
	if current.Locked {
		l.logger.Warn("reclaiming stale execution lock",
			"workflow_id", id.String(),
			"acquired_at", current.AcquiredAt,
			"owner", current.Owner)
	}

	next := LockDocument{Locked: true, AcquiredAt: l.clock().UTC(), Owner: l.owner}
	if cas, ok := l.store.(DocumentCAS); ok {
		return cas.CompareAndSwapJSON(ctx, path, next, previous)
	}
	if err := l.store.PutJSON(ctx, path, next); err != nil {
		return false, err
	}
	return true, nil
}

// Init writes an unlocked flag document for a new workflow.
func (l *ExecutionLock) Init(ctx context.Context, id WorkflowID) error {
	return l.store.PutJSON(ctx, InvoiceLockPath(id), LockDocument{Locked: false})
}

// Release resets the lock flag. It must run on every exit path of an
// invocation, or the workflow becomes unschedulable until the TTL reclaim.
// On a CAS-capable store the release is conditional: a holder that overran
// its TTL and lost the lock to a reclaimer must not unlock the reclaimer's
// fresh acquisition.
func (l *ExecutionLock) Release(ctx context.Context, id WorkflowID) error {
	path := InvoiceLockPath(id)
	next := LockDocument{Locked: false}
	cas, ok := l.store.(DocumentCAS)
	if !ok {
		return l.store.PutJSON(ctx, path, next)
	}

	previous, current, err := l.read(ctx, path)
	if err != nil {
		return err
	}
	if !current.Locked {
		return nil
	}
	if current.Owner != l.owner {
		l.logger.Warn("lock no longer held by this owner, skipping release",
			"workflow_id", id.String(),
			"owner", l.owner,
			"holder", current.Owner)
		return nil
	}
	swapped, err := cas.CompareAndSwapJSON(ctx, path, next, previous)
	if err != nil {
		return err
	}
	if !swapped {
		l.logger.Warn("lock changed during release",
			"workflow_id", id.String(), "owner", l.owner)
	}
	return nil
}

// IsLocked reports whether the workflow currently holds a live lock. External
// dispatchers use this to refuse double-dispatching a workflow.
func (l *ExecutionLock) IsLocked(ctx context.Context, id WorkflowID) (bool, error) {
	_, current, err := l.read(ctx, InvoiceLockPath(id))
	if err != nil {
		return false, err
	}
	return current.Locked && !l.stale(current), nil
}

func (l *ExecutionLock) read(ctx context.Context, path string) ([]byte, LockDocument, error) {
	raw, err := l.store.GetObject(ctx, path)
	if IsNotFound(err) {
		// Never initialized: treated as unlocked, created on acquire.
		return nil, LockDocument{}, nil
	}
	if err != nil {
		return nil, LockDocument{}, err
	}
	var doc LockDocument
	if err := unmarshalDocument(raw, &doc); err != nil {
		return nil, LockDocument{}, err
	}
	return raw, doc, nil
}

func (l *ExecutionLock) stale(doc LockDocument) bool {
	if l.ttl <= 0 || doc.AcquiredAt.IsZero() {
		return false
	}
	return l.clock().Sub(doc.AcquiredAt) > l.ttl
}
