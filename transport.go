package luzidos

import (
	"context"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"sync"
	"time"
)

// OutgoingMessage is a fully addressed reply ready for a mail transport. The
// threading headers (In-Reply-To, References) are constructed once, by
// ComposeReply, so every transport sends the same wire headers.
type OutgoingMessage struct {
	From       string
	To         []string
	Cc         []string
	Subject    string
	Body       string
	InReplyTo  string
	References string
}

// MailTransport sends outgoing messages and fetches inbound content.
type MailTransport interface {
	// Send delivers the message and returns the provider's message id.
	Send(ctx context.Context, msg *OutgoingMessage) (string, error)

	// FetchRawMessage returns the raw RFC 822 content of a received message.
	FetchRawMessage(ctx context.Context, messageID string) ([]byte, error)

	// ListUnread returns inbound messages not yet handed to the correlator.
	// Push-based providers deliver messages directly and always return an
	// empty slice here.
	ListUnread(ctx context.Context) ([]*InboundMessage, error)
}

// BuildMIME renders the message as an RFC 822 text. All header construction
// for outgoing mail lives here; transports hand the result to their provider
// unmodified.
func BuildMIME(msg *OutgoingMessage) ([]byte, error) {
	if msg.From == "" {
		return nil, fmt.Errorf("outgoing message has no sender")
	}
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("outgoing message has no recipients")
	}

	var b strings.Builder
	writeHeader := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\r\n", name, sanitizeHeaderValue(value))
		}
	}
	writeHeader("From", msg.From)
	writeHeader("To", strings.Join(msg.To, ", "))
	writeHeader("Cc", strings.Join(msg.Cc, ", "))
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", sanitizeHeaderValue(msg.Subject)))
	writeHeader("In-Reply-To", msg.InReplyTo)
	writeHeader("References", msg.References)
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `text/plain; charset="utf-8"`)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String()), nil
}

// sanitizeHeaderValue strips CR and LF so values copied from inbound mail
// (reply subjects in particular) cannot smuggle extra headers into the
// rendered message.
func sanitizeHeaderValue(value string) string {
	if !strings.ContainsAny(value, "\r\n") {
		return value
	}
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.ReplaceAll(value, "\n", " ")
}

// splitAddressList splits a comma-separated address header into bare
// addresses. Display names are dropped; malformed entries are kept verbatim
// so no participant silently disappears.
func splitAddressList(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var addrs []string
	if parsed, err := mail.ParseAddressList(list); err == nil {
		for _, a := range parsed {
			addrs = append(addrs, a.Address)
		}
		return addrs
	}
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			addrs = append(addrs, part)
		}
	}
	return addrs
}

// MemoryTransport records sent messages and serves canned inbound content,
// for tests and local runs.
type MemoryTransport struct {
	mutex  sync.Mutex
	sent   []*OutgoingMessage
	raw    map[string][]byte
	unread []*InboundMessage
}

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{raw: map[string][]byte{}}
}

func (t *MemoryTransport) Send(ctx context.Context, msg *OutgoingMessage) (string, error) {
	if _, err := BuildMIME(msg); err != nil {
		return "", err
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.sent = append(t.sent, msg)
	return fmt.Sprintf("memory-%d-%d", time.Now().UnixNano(), len(t.sent)), nil
}

func (t *MemoryTransport) FetchRawMessage(ctx context.Context, messageID string) ([]byte, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	raw, ok := t.raw[messageID]
	if !ok {
		return nil, NewAgentError(ErrorTypeNotFound,
			fmt.Sprintf("no raw content stored for message %q", messageID))
	}
	return raw, nil
}

// ListUnread drains and returns the seeded inbox.
func (t *MemoryTransport) ListUnread(ctx context.Context) ([]*InboundMessage, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	unread := t.unread
	t.unread = nil
	return unread, nil
}

// SeedInbound queues a message for the next ListUnread.
func (t *MemoryTransport) SeedInbound(msg *InboundMessage) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.unread = append(t.unread, msg)
}

// StoreRawMessage seeds raw content for FetchRawMessage.
func (t *MemoryTransport) StoreRawMessage(messageID string, raw []byte) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.raw[messageID] = raw
}

// Sent returns the messages delivered so far.
func (t *MemoryTransport) Sent() []*OutgoingMessage {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]*OutgoingMessage(nil), t.sent...)
}
