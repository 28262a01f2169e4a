package luzidos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
)

// AgentProcesses is the per-user registry document. An invoice id moves from
// open to completed (or cancelled) exactly once.
type AgentProcesses struct {
	Open      []string `json:"open_agent_processes"`
	Completed []string `json:"completed_agent_processes"`
	Cancelled []string `json:"cancelled_agent_processes"`
}

// ProcessRegistryOptions configures a new ProcessRegistry.
type ProcessRegistryOptions struct {
	Store  DocumentStore
	Logger *slog.Logger
}

// ProcessRegistry tracks which workflow instances are open, completed, or
// cancelled for each user.
type ProcessRegistry struct {
	store  DocumentStore
	logger *slog.Logger
}

// NewProcessRegistry creates a registry over the given store.
func NewProcessRegistry(opts ProcessRegistryOptions) (*ProcessRegistry, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ProcessRegistry{store: opts.Store, logger: opts.Logger}, nil
}

// Processes reads the registry document for a user. A missing document is an
// empty registry.
func (r *ProcessRegistry) Processes(ctx context.Context, userID string) (*AgentProcesses, error) {
	var processes AgentProcesses
	err := r.store.GetJSON(ctx, AgentProcessesPath(userID), &processes)
	if IsNotFound(err) {
		return &AgentProcesses{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &processes, nil
}

// MarkOpen records a newly initiated workflow instance. Re-marking an
// already open id is a no-op.
func (r *ProcessRegistry) MarkOpen(ctx context.Context, id WorkflowID) error {
	processes, err := r.Processes(ctx, id.UserID)
	if err != nil {
		return err
	}
	if slices.Contains(processes.Open, id.InvoiceID) {
		return nil
	}
	processes.Open = append(processes.Open, id.InvoiceID)
	return r.save(ctx, id.UserID, processes)
}

// MarkComplete moves an invoice id from the open set to the completed set.
// Fails with not_open when the id is not currently open, so the transition
// can only happen once.
func (r *ProcessRegistry) MarkComplete(ctx context.Context, id WorkflowID) error {
	return r.close(ctx, id, func(p *AgentProcesses) {
		p.Completed = append(p.Completed, id.InvoiceID)
	})
}

// MarkCancelled moves an invoice id from the open set to the cancelled set
// under the same transition rule as MarkComplete.
func (r *ProcessRegistry) MarkCancelled(ctx context.Context, id WorkflowID) error {
	return r.close(ctx, id, func(p *AgentProcesses) {
		p.Cancelled = append(p.Cancelled, id.InvoiceID)
	})
}

func (r *ProcessRegistry) close(ctx context.Context, id WorkflowID, move func(*AgentProcesses)) error {
	processes, err := r.Processes(ctx, id.UserID)
	if err != nil {
		return err
	}
	index := slices.Index(processes.Open, id.InvoiceID)
	if index < 0 {
		return NewAgentError(ErrorTypeNotOpen,
			fmt.Sprintf("invoice %q is not an open process for user %q", id.InvoiceID, id.UserID))
	}
	processes.Open = slices.Delete(processes.Open, index, index+1)
	move(processes)
	r.logger.Info("agent process closed", "workflow_id", id.String())
	return r.save(ctx, id.UserID, processes)
}

func (r *ProcessRegistry) save(ctx context.Context, userID string, processes *AgentProcesses) error {
	return r.store.PutJSON(ctx, AgentProcessesPath(userID), processes)
}
