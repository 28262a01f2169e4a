package luzidos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.jetify.com/typeid"
)

// NewTimebombID returns a new unique deferred-trigger identifier.
func NewTimebombID() string {
	id, err := typeid.WithPrefix("timebomb")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// NewInvoiceID returns a new unique invoice identifier for workflows started
// without one supplied by the ingestion pipeline.
func NewInvoiceID() string {
	id, err := typeid.WithPrefix("invoice")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// TimebombRuleName returns the event-bus rule name for a timebomb id.
func TimebombRuleName(timebombID string) string {
	return "trigger-agent-" + timebombID
}

// PayloadMetadata routes a fired trigger back to its workflow and record.
type PayloadMetadata struct {
	UserID     string `json:"user_id"`
	InvoiceID  string `json:"invoice_id"`
	ThreadID   string `json:"thread_id"`
	TimebombID string `json:"timebomb_id,omitempty"`
}

// ResumptionPayload is carried by a deferred trigger: the state update to
// deep-merge into the workflow when the trigger fires.
type ResumptionPayload struct {
	Metadata    PayloadMetadata `json:"metadata"`
	StateUpdate map[string]any  `json:"state_update"`
}

// WorkflowID returns the workflow instance the payload belongs to.
func (p *ResumptionPayload) WorkflowID() WorkflowID {
	return WorkflowID{UserID: p.Metadata.UserID, InvoiceID: p.Metadata.InvoiceID}
}

// CountdownDuration expresses a follow-up window in calendar units. Days,
// weeks, months, and years follow calendar arithmetic; hours are absolute.
type CountdownDuration struct {
	Hours  int
	Days   int
	Weeks  int
	Months int
	Years  int
}

func (d CountdownDuration) String() string {
	return fmt.Sprintf("COUNTDOWN-%dH-%dD-%dW-%dM-%dY", d.Hours, d.Days, d.Weeks, d.Months, d.Years)
}

// LocalTimeAlignment pins a trigger to a wall-clock time in a timezone.
type LocalTimeAlignment struct {
	Hour     int
	Minute   int
	Timezone string
}

// ComputeCountdownTime returns the trigger instant for a countdown: the
// latest occurrence of the aligned wall-clock time that still falls within
// now + duration. With no alignment the deadline itself is returned. The
// result is UTC, truncated to whole minutes to match the event bus's cron
// resolution.
//
// If the time of day at the deadline is at or past the aligned time, the
// trigger lands on the deadline's date at the aligned time; otherwise the
// last in-window occurrence is on the current date, so the trigger lands
// there. A 24-hour follow-up aligned to 8:00 Bogota taken at 13:00 local
// therefore fires at 8:00 the next day, while the same follow-up taken at
// 5:00 local fires at 8:00 the same day.
func ComputeCountdownTime(now time.Time, d CountdownDuration, align *LocalTimeAlignment) (time.Time, error) {
	deadline := now.
		Add(time.Duration(d.Hours) * time.Hour).
		AddDate(d.Years, d.Months, d.Days+7*d.Weeks)
	if align == nil {
		return deadline.UTC().Truncate(time.Minute), nil
	}

	loc, err := time.LoadLocation(align.Timezone)
	if err != nil {
		return time.Time{}, NewAgentError(ErrorTypeScheduling,
			fmt.Sprintf("invalid timezone %q: %v", align.Timezone, err))
	}

	localDeadline := deadline.In(loc)
	base := localDeadline
	if minuteOfDay(localDeadline) < align.Hour*60+align.Minute {
		base = now.In(loc)
	}
	trigger := time.Date(base.Year(), base.Month(), base.Day(),
		align.Hour, align.Minute, 0, 0, loc)
	return trigger.UTC(), nil
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// SchedulerOptions configures a new Scheduler.
type SchedulerOptions struct {
	Bus ScheduledEventBus

	// Target is the address (ARN) of the resumption entrypoint invoked when
	// a timebomb fires.
	Target string

	// Alignment is the default local-time alignment used by the follow-up
	// templates. Defaults to 8:00 America/Bogota.
	Alignment LocalTimeAlignment

	Logger *slog.Logger
	Clock  func() time.Time
}

// Scheduler arms and cancels deferred triggers ("timebombs") through a
// scheduled event bus. Scheduling writes no workflow state itself; callers
// record the returned TimebombRecord under the owning thread while holding
// the execution lock.
type Scheduler struct {
	bus       ScheduledEventBus
	target    string
	alignment LocalTimeAlignment
	logger    *slog.Logger
	clock     func() time.Time
}

// NewScheduler creates a scheduler over the given event bus.
func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	if opts.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	if opts.Target == "" {
		return nil, fmt.Errorf("resumption target is required")
	}
	if opts.Alignment == (LocalTimeAlignment{}) {
		opts.Alignment = LocalTimeAlignment{Hour: 8, Timezone: "America/Bogota"}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Scheduler{
		bus:       opts.Bus,
		target:    opts.Target,
		alignment: opts.Alignment,
		logger:    opts.Logger,
		clock:     opts.Clock,
	}, nil
}

// Schedule arms a trigger at the given instant carrying payload and returns
// its ACTIVE record. fireAt is rounded down to the minute. Schedule does not
// inspect existing records: arming two triggers for the same purpose is
// last-writer-wins and the templates are responsible for cancel-and-replace.
func (s *Scheduler) Schedule(ctx context.Context, fireAt time.Time, timebombType string, payload *ResumptionPayload) (*TimebombRecord, error) {
	timebombID := NewTimebombID()
	payload.Metadata.TimebombID = timebombID

	data, err := marshalDocument(payload)
	if err != nil {
		return nil, err
	}
	fireAt = fireAt.UTC().Truncate(time.Minute)
	if err := s.bus.ScheduleInvocation(ctx, TimebombRuleName(timebombID), timebombID, fireAt, s.target, data); err != nil {
		return nil, WrapError(ErrorTypeScheduling, err)
	}

	s.logger.Info("timebomb armed",
		"timebomb_id", timebombID,
		"type", timebombType,
		"trigger_datetime", fireAt)
	return &TimebombRecord{
		TimebombID:      timebombID,
		Status:          TimebombActive,
		SetDatetime:     s.clock().UTC(),
		TriggerDatetime: fireAt,
		Type:            timebombType,
	}, nil
}

// ScheduleCountdown arms a trigger at the countdown instant computed from
// the scheduler's clock.
func (s *Scheduler) ScheduleCountdown(ctx context.Context, d CountdownDuration, align *LocalTimeAlignment, timebombType string, payload *ResumptionPayload) (*TimebombRecord, error) {
	fireAt, err := ComputeCountdownTime(s.clock(), d, align)
	if err != nil {
		return nil, err
	}
	if timebombType == "" {
		timebombType = d.String()
	}
	return s.Schedule(ctx, fireAt, timebombType, payload)
}

// Cancel removes the scheduled invocation, best effort. If the event bus has
// already fired the trigger the removal fails downstream and the resumption
// still occurs; the record's status check at resumption time covers that
// race.
func (s *Scheduler) Cancel(ctx context.Context, timebombID string) error {
	return s.bus.CancelInvocation(ctx, TimebombRuleName(timebombID), timebombID)
}

// ClearThreadTimebombs cancels every ACTIVE record under a thread and marks
// it CANCELLED in the state document. The caller persists the state.
func (s *Scheduler) ClearThreadTimebombs(ctx context.Context, state *WorkflowState, threadID string) error {
	records := state.State.Metadata.Timebombs[threadID]
	for timebombID, record := range records {
		if record.Status != TimebombActive {
			continue
		}
		if err := s.Cancel(ctx, timebombID); err != nil {
			s.logger.Warn("timebomb cancellation failed",
				"timebomb_id", timebombID, "error", err)
		}
		record.Status = TimebombCancelled
		records[timebombID] = record
	}
	return nil
}
