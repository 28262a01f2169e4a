package luzidos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCorrelator(t *testing.T) (*ThreadCorrelator, *StateRepository) {
	t.Helper()
	repo, _ := newTestRepository(t)
	identity := NewMemoryIdentityLookup()
	identity.Register("collections@luzidos.example", "user-1")
	correlator, err := NewThreadCorrelator(ThreadCorrelatorOptions{
		Repository: repo,
		Identity:   identity,
	})
	require.NoError(t, err)
	return correlator, repo
}

func inboundFixture() *InboundMessage {
	return &InboundMessage{
		MessageID:    "provider-msg-1",
		RFCMessageID: "<abc@mail.acme.example>",
		ThreadID:     "thread-1",
		Recipient:    "collections@luzidos.example",
		From:         "ap@acme.example",
		To:           "collections@luzidos.example",
		Date:         "Mon, 1 Jan 2024 08:00:00 -0500",
		Subject:      "Invoice 42",
		Body:         "Please find attached.",
	}
}

func TestThreadCorrelatorIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("creates thread on first message", func(t *testing.T) {
		correlator, repo := newTestCorrelator(t)
		result, err := correlator.Ingest(ctx, inboundFixture())
		require.NoError(t, err)

		assert.Equal(t, "user-1", result.UserID)
		assert.Equal(t, "thread-1", result.ThreadID)
		assert.True(t, result.Created)
		assert.Equal(t, []string{"provider-msg-1"}, result.NewMessageIDs)

		thread, err := repo.LoadThread(ctx, "user-1", "thread-1")
		require.NoError(t, err)
		require.Len(t, thread.Messages, 1)
		assert.Equal(t, "Invoice 42", thread.LatestMessage().Subject)
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		correlator, repo := newTestCorrelator(t)
		_, err := correlator.Ingest(ctx, inboundFixture())
		require.NoError(t, err)

		result, err := correlator.Ingest(ctx, inboundFixture())
		require.NoError(t, err)
		assert.False(t, result.Created)
		assert.Empty(t, result.NewMessageIDs)

		thread, err := repo.LoadThread(ctx, "user-1", "thread-1")
		require.NoError(t, err)
		assert.Len(t, thread.Messages, 1)
		assert.Equal(t, []string{"provider-msg-1"}, thread.MessageOrder)
	})

	t.Run("second message appends to the thread", func(t *testing.T) {
		correlator, repo := newTestCorrelator(t)
		_, err := correlator.Ingest(ctx, inboundFixture())
		require.NoError(t, err)

		second := inboundFixture()
		second.MessageID = "provider-msg-2"
		second.RFCMessageID = "<def@mail.acme.example>"
		second.Subject = "Re: Invoice 42"
		result, err := correlator.Ingest(ctx, second)
		require.NoError(t, err)
		assert.False(t, result.Created)
		assert.Equal(t, []string{"provider-msg-2"}, result.NewMessageIDs)

		thread, err := repo.LoadThread(ctx, "user-1", "thread-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"provider-msg-1", "provider-msg-2"}, thread.MessageOrder)
		assert.Equal(t, "Re: Invoice 42", thread.LatestMessage().Subject)
	})

	t.Run("unknown recipient fails with unknown_sender", func(t *testing.T) {
		correlator, _ := newTestCorrelator(t)
		msg := inboundFixture()
		msg.Recipient = "nobody@luzidos.example"
		_, err := correlator.Ingest(ctx, msg)
		require.Error(t, err)
		assert.True(t, HasErrorType(err, ErrorTypeUnknownSender))
	})

	t.Run("missing ids rejected", func(t *testing.T) {
		correlator, _ := newTestCorrelator(t)
		msg := inboundFixture()
		msg.MessageID = ""
		_, err := correlator.Ingest(ctx, msg)
		require.Error(t, err)

		msg = inboundFixture()
		msg.ThreadID = ""
		_, err = correlator.Ingest(ctx, msg)
		require.Error(t, err)
	})
}

func TestComposeReply(t *testing.T) {
	ctx := context.Background()
	self := "collections@luzidos.example"

	t.Run("threading headers chain the latest message", func(t *testing.T) {
		correlator, _ := newTestCorrelator(t)
		first := inboundFixture()
		_, err := correlator.Ingest(ctx, first)
		require.NoError(t, err)

		second := inboundFixture()
		second.MessageID = "provider-msg-2"
		second.RFCMessageID = "<def@mail.acme.example>"
		second.References = "<abc@mail.acme.example>"
		_, err = correlator.Ingest(ctx, second)
		require.NoError(t, err)

		reply, err := correlator.ComposeReply(ctx, "user-1", "thread-1", self, "Following up.", false)
		require.NoError(t, err)

		assert.Equal(t, "<def@mail.acme.example>", reply.InReplyTo)
		assert.Equal(t, "<abc@mail.acme.example> <def@mail.acme.example>", reply.References)
		assert.Equal(t, "Re: Invoice 42", reply.Subject)
		assert.Equal(t, "Following up.", reply.Body)
	})

	t.Run("default reply addresses only the latest sender", func(t *testing.T) {
		correlator, _ := newTestCorrelator(t)
		msg := inboundFixture()
		msg.Cc = "controller@acme.example"
		_, err := correlator.Ingest(ctx, msg)
		require.NoError(t, err)

		reply, err := correlator.ComposeReply(ctx, "user-1", "thread-1", self, "x", false)
		require.NoError(t, err)
		assert.Equal(t, []string{"ap@acme.example"}, reply.To)
	})

	t.Run("reply-all expands to participants except own address", func(t *testing.T) {
		correlator, _ := newTestCorrelator(t)
		msg := inboundFixture()
		msg.Cc = "controller@acme.example"
		_, err := correlator.Ingest(ctx, msg)
		require.NoError(t, err)

		reply, err := correlator.ComposeReply(ctx, "user-1", "thread-1", self, "x", true)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"ap@acme.example", "controller@acme.example"}, reply.To)
		assert.NotContains(t, reply.To, self)
	})

	t.Run("re prefix not duplicated", func(t *testing.T) {
		correlator, _ := newTestCorrelator(t)
		msg := inboundFixture()
		msg.Subject = "RE: Invoice 42"
		_, err := correlator.Ingest(ctx, msg)
		require.NoError(t, err)

		reply, err := correlator.ComposeReply(ctx, "user-1", "thread-1", self, "x", false)
		require.NoError(t, err)
		assert.Equal(t, "RE: Invoice 42", reply.Subject)
	})

	t.Run("missing thread fails with not_found", func(t *testing.T) {
		correlator, _ := newTestCorrelator(t)
		_, err := correlator.ComposeReply(ctx, "user-1", "missing", self, "x", false)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})
}
