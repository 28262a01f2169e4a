package luzidos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// InboundMessage is one received email as handed over by the mail provider.
type InboundMessage struct {
	// MessageID is the provider's stable id for the message. Ingest is keyed
	// on it, so redelivery of the same id is a no-op.
	MessageID string

	// RFCMessageID is the Message-ID header value, used for reply threading.
	RFCMessageID string

	// ThreadID is the provider's conversation id. A message with a thread id
	// never seen before creates a new thread document.
	ThreadID string

	// Recipient is the agent-owned address the message was delivered to. It
	// is the key for resolving the owning user.
	Recipient string

	From          string
	To            string
	Cc            string
	Date          string
	Subject       string
	Body          string
	InReplyTo     string
	References    string
	AttachmentIDs []string
}

// MergeResult reports what an ingest changed.
type MergeResult struct {
	UserID        string
	ThreadID      string
	Created       bool
	NewMessageIDs []string
}

// ThreadCorrelatorOptions configures a new ThreadCorrelator.
type ThreadCorrelatorOptions struct {
	Repository *StateRepository
	Identity   IdentityLookup
	Logger     *slog.Logger
}

// ThreadCorrelator files inbound email into per-user thread documents and
// composes replies on those threads. Ingest is idempotent: messages merge by
// message id, so the provider may deliver duplicates freely.
type ThreadCorrelator struct {
	repo     *StateRepository
	identity IdentityLookup
	logger   *slog.Logger
}

// NewThreadCorrelator creates a correlator.
func NewThreadCorrelator(opts ThreadCorrelatorOptions) (*ThreadCorrelator, error) {
	if opts.Repository == nil {
		return nil, fmt.Errorf("state repository is required")
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("identity lookup is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ThreadCorrelator{
		repo:     opts.Repository,
		identity: opts.Identity,
		logger:   opts.Logger,
	}, nil
}

// Ingest resolves the owning user from the delivery address and merges the
// message into that user's thread document, creating the thread if needed.
// Resolution keys on the recipient, not the sender: each user owns a
// dedicated collections mailbox, so the address the vendor wrote to is what
// identifies the user, and any vendor may mail it. Mail to an unmapped
// address still fails with unknown_sender, since from the workflow's view
// the message comes from outside every known conversation.
func (c *ThreadCorrelator) Ingest(ctx context.Context, msg *InboundMessage) (*MergeResult, error) {
	if msg.MessageID == "" {
		return nil, fmt.Errorf("inbound message has no message id")
	}
	if msg.ThreadID == "" {
		return nil, fmt.Errorf("inbound message has no thread id")
	}
	userID, err := c.identity.UserIDForEmail(ctx, msg.Recipient)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{UserID: userID, ThreadID: msg.ThreadID}
	thread, err := c.repo.LoadThread(ctx, userID, msg.ThreadID)
	if IsNotFound(err) {
		thread = NewEmailThread(msg.ThreadID)
		result.Created = true
	} else if err != nil {
		return nil, err
	}

	isNew := thread.AddMessage(&Message{
		MessageID:     msg.MessageID,
		RFCMessageID:  msg.RFCMessageID,
		From:          msg.From,
		To:            msg.To,
		Cc:            msg.Cc,
		Date:          msg.Date,
		Subject:       msg.Subject,
		Body:          msg.Body,
		InReplyTo:     msg.InReplyTo,
		References:    msg.References,
		AttachmentIDs: msg.AttachmentIDs,
	})
	if !isNew && !result.Created {
		// Redelivery of a known message. Nothing changed, skip the write.
		return result, nil
	}
	if isNew {
		result.NewMessageIDs = append(result.NewMessageIDs, msg.MessageID)
	}
	if err := c.repo.SaveThread(ctx, userID, thread); err != nil {
		return nil, err
	}
	c.logger.Info("inbound message filed",
		"user_id", userID,
		"thread_id", msg.ThreadID,
		"message_id", msg.MessageID,
		"created_thread", result.Created)
	return result, nil
}

// ComposeReply builds a reply to the thread's most recent message from the
// given address. By default only the latest message's sender is addressed;
// replyAll expands the recipient set to every prior participant. The
// threading headers chain the latest message's Message-ID into In-Reply-To
// and append it to the References trail, so every mail client keeps the
// conversation together.
func (c *ThreadCorrelator) ComposeReply(ctx context.Context, userID, threadID, from, body string, replyAll bool) (*OutgoingMessage, error) {
	thread, err := c.repo.LoadThread(ctx, userID, threadID)
	if err != nil {
		return nil, err
	}
	latest := thread.LatestMessage()
	if latest == nil {
		return nil, NewAgentError(ErrorTypeNotFound,
			fmt.Sprintf("thread %q has no messages to reply to", threadID))
	}

	var to []string
	if replyAll {
		for _, addr := range thread.Participants() {
			if !strings.EqualFold(addr, from) {
				to = append(to, addr)
			}
		}
	} else if !strings.EqualFold(latest.From, from) && latest.From != "" {
		to = append(to, latest.From)
	}
	if len(to) == 0 {
		return nil, NewAgentError(ErrorTypeNotFound,
			fmt.Sprintf("thread %q has no recipients besides %q", threadID, from))
	}

	references := latest.References
	if latest.RFCMessageID != "" {
		if references != "" {
			references += " "
		}
		references += latest.RFCMessageID
	}
	subject := latest.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	return &OutgoingMessage{
		From:       from,
		To:         to,
		Subject:    subject,
		Body:       body,
		InReplyTo:  latest.RFCMessageID,
		References: references,
	}, nil
}
