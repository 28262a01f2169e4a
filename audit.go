package luzidos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"
)

// AuditEntry is one recorded state transition. Entries are appended, never
// mutated or removed, and reflect call order at the single writer holding
// the execution lock.
type AuditEntry struct {
	Actor      string         `json:"actor"`
	UpdateTime time.Time      `json:"update_time"`
	StateData  map[string]any `json:"state_data"`
}

type auditSegment struct {
	StateLog []AuditEntry `json:"state_log"`
}

// AuditLogOptions configures a new AuditLog.
type AuditLogOptions struct {
	Store DocumentStore

	// MaxEntriesPerSegment bounds the active segment; once full it is rolled
	// over to an archived segment document. Zero uses the default of 500.
	MaxEntriesPerSegment int

	Logger *slog.Logger
	Clock  func() time.Time
}

// AuditLog is the append-only history of a workflow's state transitions.
// The active segment lives at the workflow's log path; full segments are
// archived under numbered paths so no single document grows unbounded.
type AuditLog struct {
	store      DocumentStore
	maxEntries int
	logger     *slog.Logger
	clock      func() time.Time
}

// NewAuditLog creates an audit log over the given store.
func NewAuditLog(opts AuditLogOptions) (*AuditLog, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if opts.MaxEntriesPerSegment <= 0 {
		opts.MaxEntriesPerSegment = 500
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &AuditLog{
		store:      opts.Store,
		maxEntries: opts.MaxEntriesPerSegment,
		logger:     opts.Logger,
		clock:      opts.Clock,
	}, nil
}

// Init writes an empty active segment for a new workflow.
func (a *AuditLog) Init(ctx context.Context, id WorkflowID) error {
	return a.store.PutJSON(ctx, InvoiceLogPath(id), auditSegment{StateLog: []AuditEntry{}})
}

// Append records one state transition with a wall-clock timestamp. The
// active segment is rolled over to an archive document when full.
func (a *AuditLog) Append(ctx context.Context, id WorkflowID, actor string, stateData map[string]any) error {
	path := InvoiceLogPath(id)
	var segment auditSegment
	if err := a.store.GetJSON(ctx, path, &segment); err != nil {
		return err
	}

	if len(segment.StateLog) >= a.maxEntries {
		archived, err := a.archiveSegment(ctx, id, segment)
		if err != nil {
			return err
		}
		a.logger.Info("audit log segment rolled over",
			"workflow_id", id.String(), "segment", archived)
		segment = auditSegment{StateLog: []AuditEntry{}}
	}

	segment.StateLog = append(segment.StateLog, AuditEntry{
		Actor:      actor,
		UpdateTime: a.clock().UTC(),
		StateData:  stateData,
	})
	return a.store.PutJSON(ctx, path, segment)
}

// ReadAll returns the full history across archived segments and the active
// segment, in append order.
func (a *AuditLog) ReadAll(ctx context.Context, id WorkflowID) ([]AuditEntry, error) {
	segmentPaths, err := a.store.List(ctx, InvoiceLogSegmentPrefix(id))
	if err != nil {
		return nil, err
	}
	sort.Strings(segmentPaths)

	var entries []AuditEntry
	for _, path := range segmentPaths {
		var segment auditSegment
		if err := a.store.GetJSON(ctx, path, &segment); err != nil {
			return nil, err
		}
		entries = append(entries, segment.StateLog...)
	}

	var active auditSegment
	if err := a.store.GetJSON(ctx, InvoiceLogPath(id), &active); err != nil {
		if IsNotFound(err) {
			return entries, nil
		}
		return nil, err
	}
	return append(entries, active.StateLog...), nil
}

func (a *AuditLog) archiveSegment(ctx context.Context, id WorkflowID, segment auditSegment) (int, error) {
	existing, err := a.store.List(ctx, InvoiceLogSegmentPrefix(id))
	if err != nil {
		return 0, err
	}
	next := len(existing) + 1
	if err := a.store.PutJSON(ctx, InvoiceLogSegmentPath(id, next), segment); err != nil {
		return 0, err
	}
	return next, nil
}
