package luzidos

import "github.com/google/uuid"

// EmailThread is the unit of correlation between inbound mail and a workflow.
// Messages are keyed by message id for idempotent merging; MessageOrder
// preserves arrival order since the map itself is unordered.
type EmailThread struct {
	ThreadID     string              `json:"thread_id"`
	Messages     map[string]*Message `json:"messages"`
	MessageOrder []string            `json:"message_order"`
}

// Message is one email message recorded in a thread document.
type Message struct {
	MessageID     string   `json:"message_id"`
	RFCMessageID  string   `json:"rfc_message_id,omitempty"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	Cc            string   `json:"cc,omitempty"`
	Date          string   `json:"date"`
	Subject       string   `json:"subject"`
	Body          string   `json:"body"`
	InReplyTo     string   `json:"in_reply_to,omitempty"`
	References    string   `json:"references,omitempty"`
	AttachmentIDs []string `json:"attachment_ids"`
}

// Attachment is the stored descriptor of one email attachment after the
// external ingestion step (OCR plus summary) has run.
type Attachment struct {
	AttachmentID   string `json:"attachment_id"`
	AttachmentName string `json:"attachment_name"`
	AttachmentType string `json:"attachment_type"`
	AttachmentOCR  string `json:"attachment_OCR"`
	Description    string `json:"attachment_description"`
}

// NewAttachmentID returns a fresh attachment identifier.
func NewAttachmentID() string {
	return uuid.NewString()
}

// NewEmailThread creates an empty thread document.
func NewEmailThread(threadID string) *EmailThread {
	return &EmailThread{
		ThreadID: threadID,
		Messages: map[string]*Message{},
	}
}

// AddMessage merges a message into the thread keyed by its message id.
// Re-adding an existing id overwrites the stored message without creating a
// duplicate. It reports whether the message was new to the thread.
func (t *EmailThread) AddMessage(msg *Message) bool {
	if t.Messages == nil {
		t.Messages = map[string]*Message{}
	}
	_, exists := t.Messages[msg.MessageID]
	t.Messages[msg.MessageID] = msg
	if !exists {
		t.MessageOrder = append(t.MessageOrder, msg.MessageID)
	}
	return !exists
}

// LatestMessage returns the most recently added message, or nil for an empty
// thread.
func (t *EmailThread) LatestMessage() *Message {
	for i := len(t.MessageOrder) - 1; i >= 0; i-- {
		if msg, ok := t.Messages[t.MessageOrder[i]]; ok {
			return msg
		}
	}
	return nil
}

// Participants returns the distinct addresses seen across the thread's
// from/to/cc fields, in first-seen order.
func (t *EmailThread) Participants() []string {
	seen := map[string]bool{}
	var participants []string
	add := func(addr string) {
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		participants = append(participants, addr)
	}
	for _, id := range t.MessageOrder {
		msg, ok := t.Messages[id]
		if !ok {
			continue
		}
		add(msg.From)
		for _, addr := range splitAddressList(msg.To) {
			add(addr)
		}
		for _, addr := range splitAddressList(msg.Cc) {
			add(addr)
		}
	}
	return participants
}
