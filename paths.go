package luzidos

import "fmt"

// Document path conventions. Every stored object lives under
// {visibility}/{user_id}/{entity}/{entity_id}/{file} so that one prefix
// listing returns everything owned by a user or a workflow instance.

// WorkflowID identifies one (user, invoice) collection agent run.
type WorkflowID struct {
	UserID    string
	InvoiceID string
}

func (id WorkflowID) String() string {
	return fmt.Sprintf("%s/%s", id.UserID, id.InvoiceID)
}

// InvoiceDirPath returns the directory prefix for a workflow instance.
func InvoiceDirPath(id WorkflowID) string {
	return fmt.Sprintf("public/%s/invoices/invoice_%s/", id.UserID, id.InvoiceID)
}

// InvoiceDataPath returns the path of a named JSON document for an invoice.
func InvoiceDataPath(id WorkflowID, name string) string {
	return fmt.Sprintf("public/%s/invoices/invoice_%s/%s.json", id.UserID, id.InvoiceID, name)
}

// InvoiceStatePath returns the workflow state document path.
func InvoiceStatePath(id WorkflowID) string {
	return InvoiceDataPath(id, "state")
}

// InvoiceTransactionPath returns the transaction document path.
func InvoiceTransactionPath(id WorkflowID) string {
	return InvoiceDataPath(id, "transaction")
}

// InvoiceLockPath returns the execution lock flag path.
func InvoiceLockPath(id WorkflowID) string {
	return fmt.Sprintf("public/%s/invoices/invoice_%s/is_locked.json", id.UserID, id.InvoiceID)
}

// InvoiceLogPath returns the active audit log segment path.
func InvoiceLogPath(id WorkflowID) string {
	return fmt.Sprintf("public/%s/invoices/invoice_%s/log.json", id.UserID, id.InvoiceID)
}

// InvoiceLogSegmentPath returns the path of an archived audit log segment.
func InvoiceLogSegmentPath(id WorkflowID, segment int) string {
	return fmt.Sprintf("public/%s/invoices/invoice_%s/log-%06d.json", id.UserID, id.InvoiceID, segment)
}

// InvoiceLogSegmentPrefix returns the listing prefix for archived segments.
func InvoiceLogSegmentPrefix(id WorkflowID) string {
	return fmt.Sprintf("public/%s/invoices/invoice_%s/log-", id.UserID, id.InvoiceID)
}

// InvoiceFilePath returns the path for a binary file attached to an invoice.
func InvoiceFilePath(id WorkflowID, fileName string) string {
	return fmt.Sprintf("public/%s/invoices/invoice_%s/files/%s", id.UserID, id.InvoiceID, fileName)
}

// EInvoiceDataPath returns the electronic invoice document path.
func EInvoiceDataPath(id WorkflowID) string {
	return InvoiceFilePath(id, "einvoice.json")
}

// EmailThreadPath returns the email thread document path for a user.
func EmailThreadPath(userID, threadID string) string {
	return fmt.Sprintf("public/%s/emails/email_%s/email.json", userID, threadID)
}

// EmailAttachmentDirPath returns the attachment directory prefix of a thread.
func EmailAttachmentDirPath(userID, threadID string) string {
	return fmt.Sprintf("public/%s/emails/email_%s/attachments/", userID, threadID)
}

// EmailAttachmentPath returns the path of one attachment object or descriptor.
func EmailAttachmentPath(userID, threadID, name string) string {
	return EmailAttachmentDirPath(userID, threadID) + name
}

// UserDataPath returns the user profile document path.
func UserDataPath(userID string) string {
	return fmt.Sprintf("public/%s/user/user_data.json", userID)
}

// AgentProcessesPath returns the per-user process registry document path.
func AgentProcessesPath(userID string) string {
	return fmt.Sprintf("public/%s/user/agent_processes.json", userID)
}

// EmailTokenPath returns the mailbox OAuth token document path.
func EmailTokenPath(userID string) string {
	return fmt.Sprintf("public/%s/user/email_token.json", userID)
}
