package luzidos

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/workmailmessageflow"

	"github.com/Luzidos/Utils/retry"
)

// SESTransport sends mail through SES and reads inbound raw content through
// the WorkMail message flow API.
type SESTransport struct {
	ses      *ses.Client
	workmail *workmailmessageflow.Client
}

// NewSESTransport creates a transport on the given clients.
func NewSESTransport(sesClient *ses.Client, workmailClient *workmailmessageflow.Client) *SESTransport {
	return &SESTransport{ses: sesClient, workmail: workmailClient}
}

func (t *SESTransport) Send(ctx context.Context, msg *OutgoingMessage) (string, error) {
	raw, err := BuildMIME(msg)
	if err != nil {
		return "", err
	}
	destinations := append(append([]string{}, msg.To...), msg.Cc...)

	var messageID string
	err = retry.Do(ctx, func() error {
		out, err := t.ses.SendRawEmail(ctx, &ses.SendRawEmailInput{
			Source:       aws.String(msg.From),
			Destinations: destinations,
			RawMessage:   &sestypes.RawMessage{Data: raw},
		})
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		messageID = aws.ToString(out.MessageId)
		return nil
	})
	if err != nil {
		return "", WrapError(ErrorTypeTransientIO, err)
	}
	return messageID, nil
}

// ListUnread always returns empty: WorkMail delivers inbound messages by
// invoking the ingestion entrypoint, there is no mailbox to poll.
func (t *SESTransport) ListUnread(ctx context.Context) ([]*InboundMessage, error) {
	return nil, nil
}

func (t *SESTransport) FetchRawMessage(ctx context.Context, messageID string) ([]byte, error) {
	var raw []byte
	err := retry.Do(ctx, func() error {
		out, err := t.workmail.GetRawMessageContent(ctx, &workmailmessageflow.GetRawMessageContentInput{
			MessageId: aws.String(messageID),
		})
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		defer out.MessageContent.Close()
		raw, err = io.ReadAll(out.MessageContent)
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, WrapError(ErrorTypeTransientIO, err)
	}
	return raw, nil
}
