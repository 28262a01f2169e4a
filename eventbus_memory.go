package luzidos

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ScheduledRule is the recorded form of one armed invocation in the memory
// bus.
type ScheduledRule struct {
	RuleName string
	TargetID string
	At       time.Time
	Target   string
	Payload  []byte
}

// MemoryEventBus records scheduled rules in memory and lets tests fire them
// deliberately, including after cancellation to simulate the
// cancellation-versus-in-flight race.
type MemoryEventBus struct {
	mutex sync.Mutex
	rules map[string]ScheduledRule
}

// NewMemoryEventBus creates an empty in-memory bus.
func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{rules: map[string]ScheduledRule{}}
}

func (b *MemoryEventBus) ScheduleInvocation(ctx context.Context, ruleName, targetID string, at time.Time, target string, payload []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	stored := make([]byte, len(payload))
	copy(stored, payload)
	b.rules[ruleName] = ScheduledRule{
		RuleName: ruleName,
		TargetID: targetID,
		At:       at,
		Target:   target,
		Payload:  stored,
	}
	return nil
}

func (b *MemoryEventBus) CancelInvocation(ctx context.Context, ruleName, targetID string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, ok := b.rules[ruleName]; !ok {
		return NewAgentError(ErrorTypeScheduling, fmt.Sprintf("rule %q not found", ruleName))
	}
	delete(b.rules, ruleName)
	return nil
}

// Fire removes the rule and returns it, simulating the bus invoking its
// target. Firing an unknown rule returns false, matching a delivery that
// lost the race with cancellation.
func (b *MemoryEventBus) Fire(ruleName string) (ScheduledRule, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	rule, ok := b.rules[ruleName]
	if ok {
		delete(b.rules, ruleName)
	}
	return rule, ok
}

// Rule returns the stored rule, if present.
func (b *MemoryEventBus) Rule(ruleName string) (ScheduledRule, bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	rule, ok := b.rules[ruleName]
	return rule, ok
}

// Rules returns all currently armed rules.
func (b *MemoryEventBus) Rules() []ScheduledRule {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var rules []ScheduledRule
	for _, rule := range b.rules {
		rules = append(rules, rule)
	}
	return rules
}
