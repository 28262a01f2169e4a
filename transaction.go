package luzidos

// Contact status tags on alternate vendor contacts.
const (
	ContactStatusUnchecked = "UNCHECKED_CONTACT"
	ContactStatusWrong     = "WRONG_CONTACT"
)

// VendorContact is one alternate contact for an invoice's vendor.
type VendorContact struct {
	VendorEmail string `json:"vendor_email"`
	Status      string `json:"status"`
}

// VendorDetails holds the vendor contact information of a transaction.
// The alternate-contact list is append-only except for the explicit
// pop-first operation exposed by the repository.
type VendorDetails struct {
	VendorName               string          `json:"vendor_name,omitempty"`
	VendorEmail              string          `json:"vendor_email"`
	AdditionalVendorContacts []VendorContact `json:"additional_vendor_contacts"`
}

// TransactionData is the typed view of an invoice's transaction document.
// The underlying document may carry additional business fields; typed reads
// ignore them and merge-based writes preserve them.
type TransactionData struct {
	InvoiceID     string        `json:"invoice_id,omitempty"`
	VendorDetails VendorDetails `json:"vendor_details"`
}

// UpdateContactOptions controls a contact-update operation.
type UpdateContactOptions struct {
	// Primary promotes the new contact to primary vendor email and demotes
	// the previous primary to a WRONG_CONTACT alternate.
	Primary bool

	// PopFirstAlternate drops the first alternate contact after the update.
	PopFirstAlternate bool
}
