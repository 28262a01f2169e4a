package luzidos

import (
	"context"
	"time"
)

// ScheduledEventBus arms one-shot future invocations of an external target.
// Delivery is best effort, not exactly-once: a cancellation racing an
// in-flight firing is a no-op and the invocation still happens, so the
// resumption entrypoint must stay idempotent.
type ScheduledEventBus interface {
	// ScheduleInvocation creates a uniquely named rule that invokes target
	// at the given instant with payload attached. The instant is truncated
	// to whole-minute resolution by the scheduler before this call.
	ScheduleInvocation(ctx context.Context, ruleName, targetID string, at time.Time, target string, payload []byte) error

	// CancelInvocation removes the rule and its target, best effort.
	CancelInvocation(ctx context.Context, ruleName, targetID string) error
}
