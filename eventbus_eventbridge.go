package luzidos

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/Luzidos/Utils/retry"
)

// EventBridgeBus schedules invocations as one-shot cron rules. Cron
// expressions address whole minutes only, which is why the scheduler rounds
// every trigger instant down to the minute.
type EventBridgeBus struct {
	client *eventbridge.Client
}

// NewEventBridgeBus creates a bus on the given EventBridge client.
func NewEventBridgeBus(client *eventbridge.Client) *EventBridgeBus {
	return &EventBridgeBus{client: client}
}

func (b *EventBridgeBus) ScheduleInvocation(ctx context.Context, ruleName, targetID string, at time.Time, target string, payload []byte) error {
	utc := at.UTC()
	expression := fmt.Sprintf("cron(%d %d %d %d ? %d)",
		utc.Minute(), utc.Hour(), utc.Day(), int(utc.Month()), utc.Year())

	err := retry.Do(ctx, func() error {
		_, err := b.client.PutRule(ctx, &eventbridge.PutRuleInput{
			Name:               aws.String(ruleName),
			ScheduleExpression: aws.String(expression),
			State:              types.RuleStateEnabled,
		})
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		_, err = b.client.PutTargets(ctx, &eventbridge.PutTargetsInput{
			Rule: aws.String(ruleName),
			Targets: []types.Target{{
				Id:    aws.String(targetID),
				Arn:   aws.String(target),
				Input: aws.String(string(payload)),
			}},
		})
		if err != nil {
			return retry.NewRecoverableError(err)
		}
		return nil
	})
	if err != nil {
		return WrapError(ErrorTypeScheduling, err)
	}
	return nil
}

// CancelInvocation removes the target and deletes the rule. If the rule
// already fired, EventBridge reports the rule as missing and the caller
// treats the cancellation as a no-op.
func (b *EventBridgeBus) CancelInvocation(ctx context.Context, ruleName, targetID string) error {
	_, err := b.client.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
		Rule: aws.String(ruleName),
		Ids:  []string{targetID},
	})
	if err != nil {
		return WrapError(ErrorTypeScheduling, err)
	}
	_, err = b.client.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
		Name: aws.String(ruleName),
	})
	if err != nil {
		return WrapError(ErrorTypeScheduling, err)
	}
	return nil
}
