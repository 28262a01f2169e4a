package luzidos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// StateRepositoryOptions configures a new StateRepository.
type StateRepositoryOptions struct {
	Store  DocumentStore
	Logger *slog.Logger
}

// StateRepository provides typed read and update access to one workflow's
// state document, transaction document, email threads, and user data. All
// partial updates go through the deep merge: the document is fully loaded,
// merged, and fully rewritten. There is no patch write, so merges are
// effectively last-writer-wins and callers retry idempotently.
type StateRepository struct {
	store  DocumentStore
	logger *slog.Logger
}

// NewStateRepository creates a repository over the given document store.
func NewStateRepository(opts StateRepositoryOptions) (*StateRepository, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StateRepository{store: opts.Store, logger: opts.Logger}, nil
}

// Store exposes the underlying document store for collaborating components.
func (r *StateRepository) Store() DocumentStore {
	return r.store
}

// LoadState reads the workflow state document.
func (r *StateRepository) LoadState(ctx context.Context, id WorkflowID) (*WorkflowState, error) {
	var state WorkflowState
	if err := r.store.GetJSON(ctx, InvoiceStatePath(id), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveState rewrites the full workflow state document.
func (r *StateRepository) SaveState(ctx context.Context, id WorkflowID, state *WorkflowState) error {
	return r.store.PutJSON(ctx, InvoiceStatePath(id), state)
}

// MergeState deep-merges a partial update into the stored state document and
// returns the merged result. Fails with not_found if the workflow was never
// initialized.
func (r *StateRepository) MergeState(ctx context.Context, id WorkflowID, update map[string]any) (*WorkflowState, error) {
	merged, err := r.mergeDocument(ctx, InvoiceStatePath(id), update)
	if err != nil {
		return nil, err
	}
	var state WorkflowState
	if err := roundtripJSON(merged, &state); err != nil {
		return nil, WrapError(ErrorTypeTransientIO, err)
	}
	return &state, nil
}

// LoadTransaction reads the typed view of the transaction document.
func (r *StateRepository) LoadTransaction(ctx context.Context, id WorkflowID) (*TransactionData, error) {
	var tx TransactionData
	if err := r.store.GetJSON(ctx, InvoiceTransactionPath(id), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// MergeTransaction deep-merges a partial update into the transaction
// document with the same semantics as MergeState.
func (r *StateRepository) MergeTransaction(ctx context.Context, id WorkflowID, update map[string]any) (*TransactionData, error) {
	merged, err := r.mergeDocument(ctx, InvoiceTransactionPath(id), update)
	if err != nil {
		return nil, err
	}
	var tx TransactionData
	if err := roundtripJSON(merged, &tx); err != nil {
		return nil, WrapError(ErrorTypeTransientIO, err)
	}
	return &tx, nil
}

// UpdateContact applies a contact-update operation to the transaction
// document. Non-contact fields of the document are preserved.
func (r *StateRepository) UpdateContact(ctx context.Context, id WorkflowID, newContact string, opts UpdateContactOptions) error {
	path := InvoiceTransactionPath(id)
	var doc map[string]any
	if err := r.store.GetJSON(ctx, path, &doc); err != nil {
		return err
	}

	var details VendorDetails
	if raw, ok := doc["vendor_details"]; ok {
		if err := roundtripJSON(raw, &details); err != nil {
			return WrapError(ErrorTypeTransientIO, err)
		}
	}

	if opts.Primary {
		oldContact := details.VendorEmail
		details.VendorEmail = newContact
		if oldContact != "" {
			details.AdditionalVendorContacts = append(details.AdditionalVendorContacts,
				VendorContact{VendorEmail: oldContact, Status: ContactStatusWrong})
		}
	} else {
		details.AdditionalVendorContacts = append(details.AdditionalVendorContacts,
			VendorContact{VendorEmail: newContact, Status: ContactStatusUnchecked})
	}
	if opts.PopFirstAlternate && len(details.AdditionalVendorContacts) > 0 {
		details.AdditionalVendorContacts = details.AdditionalVendorContacts[1:]
	}

	var rendered map[string]any
	if err := roundtripJSON(details, &rendered); err != nil {
		return WrapError(ErrorTypeTransientIO, err)
	}
	doc["vendor_details"] = rendered
	r.logger.Info("vendor contact updated",
		"workflow_id", id.String(), "primary", opts.Primary)
	return r.store.PutJSON(ctx, path, doc)
}

// LoadThread reads an email thread document for a user.
func (r *StateRepository) LoadThread(ctx context.Context, userID, threadID string) (*EmailThread, error) {
	var thread EmailThread
	if err := r.store.GetJSON(ctx, EmailThreadPath(userID, threadID), &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

// SaveThread rewrites an email thread document.
func (r *StateRepository) SaveThread(ctx context.Context, userID string, thread *EmailThread) error {
	return r.store.PutJSON(ctx, EmailThreadPath(userID, thread.ThreadID), thread)
}

// SaveAttachment stores an attachment descriptor under its thread.
func (r *StateRepository) SaveAttachment(ctx context.Context, userID, threadID string, attachment *Attachment) error {
	name := attachment.AttachmentID + ".json"
	return r.store.PutJSON(ctx, EmailAttachmentPath(userID, threadID, name), attachment)
}

// LoadAttachment reads an attachment descriptor.
func (r *StateRepository) LoadAttachment(ctx context.Context, userID, threadID, attachmentID string) (*Attachment, error) {
	var attachment Attachment
	path := EmailAttachmentPath(userID, threadID, attachmentID+".json")
	if err := r.store.GetJSON(ctx, path, &attachment); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// LoadUserData reads the per-user profile document.
func (r *StateRepository) LoadUserData(ctx context.Context, userID string) (map[string]any, error) {
	var doc map[string]any
	if err := r.store.GetJSON(ctx, UserDataPath(userID), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// CopyEInvoiceFromThread copies a received einvoice attachment into the
// invoice's files directory.
func (r *StateRepository) CopyEInvoiceFromThread(ctx context.Context, id WorkflowID, threadID, attachmentName string) error {
	src := EmailAttachmentPath(id.UserID, threadID, attachmentName)
	return r.store.Copy(ctx, src, EInvoiceDataPath(id))
}

func (r *StateRepository) mergeDocument(ctx context.Context, path string, update map[string]any) (map[string]any, error) {
	var current map[string]any
	if err := r.store.GetJSON(ctx, path, &current); err != nil {
		return nil, err
	}
	merged := DeepMerge(current, update)
	if err := r.store.PutJSON(ctx, path, merged); err != nil {
		return nil, err
	}
	return merged, nil
}
