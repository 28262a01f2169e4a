package luzidos

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, bus *MemoryEventBus, now time.Time) *Scheduler {
	t.Helper()
	scheduler, err := NewScheduler(SchedulerOptions{
		Bus:    bus,
		Target: "arn:aws:lambda:us-east-1:000000000000:function:resume-agent",
		Clock:  func() time.Time { return now },
	})
	require.NoError(t, err)
	return scheduler
}

func TestComputeCountdownTime(t *testing.T) {
	bogota, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	align := &LocalTimeAlignment{Hour: 8, Timezone: "America/Bogota"}

	t.Run("no alignment returns deadline on the minute", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 13, 0, 45, 0, time.UTC)
		got, err := ComputeCountdownTime(now, CountdownDuration{Hours: 2}, nil)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC), got)
	})

	t.Run("deadline past aligned time lands next day", func(t *testing.T) {
		// 13:00 UTC = 8:00 in Bogota; 24h later the local deadline is at
		// 8:00, on or past the aligned time, so the trigger is that day.
		now := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC) // 13:00 Bogota
		got, err := ComputeCountdownTime(now, CountdownDuration{Hours: 24}, align)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 2, 8, 0, 0, 0, bogota).UTC(), got)
	})

	t.Run("deadline before aligned time lands same day", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) // 5:00 Bogota
		// Deadline is 13:00 Bogota same day, past 8:00, so same day at 8:00.
		got, err := ComputeCountdownTime(now, CountdownDuration{Hours: 8}, align)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, bogota).UTC(), got)
	})

	t.Run("early morning deadline falls back to current date", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC) // 18:00 Bogota
		// 8h later is 2:00 Bogota on Jan 2, before the 8:00 alignment, so
		// the last in-window occurrence is 8:00 on the current Bogota date.
		got, err := ComputeCountdownTime(now, CountdownDuration{Hours: 8}, align)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, bogota).UTC(), got)
	})

	t.Run("calendar units", func(t *testing.T) {
		now := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
		got, err := ComputeCountdownTime(now, CountdownDuration{Months: 1}, nil)
		require.NoError(t, err)
		// AddDate normalizes Feb 31 to Mar 2 in a leap year.
		assert.Equal(t, time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC), got)

		got, err = ComputeCountdownTime(now, CountdownDuration{Weeks: 2}, nil)
		require.NoError(t, err)
		assert.Equal(t, now.AddDate(0, 0, 14), got)
	})

	t.Run("invalid timezone", func(t *testing.T) {
		_, err := ComputeCountdownTime(time.Now(), CountdownDuration{Hours: 1},
			&LocalTimeAlignment{Hour: 8, Timezone: "Mars/Olympus"})
		require.Error(t, err)
		assert.True(t, HasErrorType(err, ErrorTypeScheduling))
	})
}

func TestScheduler(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)

	t.Run("schedule arms a rule and returns an active record", func(t *testing.T) {
		bus := NewMemoryEventBus()
		scheduler := newTestScheduler(t, bus, now)

		payload := &ResumptionPayload{
			Metadata: PayloadMetadata{UserID: "user-1", InvoiceID: "inv-1", ThreadID: "thread-1"},
		}
		fireAt := now.Add(26*time.Hour + 45*time.Second)
		record, err := scheduler.Schedule(ctx, fireAt, "FOLLOWUP", payload)
		require.NoError(t, err)

		assert.Equal(t, TimebombActive, record.Status)
		assert.Equal(t, "FOLLOWUP", record.Type)
		assert.Equal(t, fireAt.Truncate(time.Minute), record.TriggerDatetime)
		assert.Equal(t, now, record.SetDatetime)
		assert.Equal(t, record.TimebombID, payload.Metadata.TimebombID)

		rule, ok := bus.Rule(TimebombRuleName(record.TimebombID))
		require.True(t, ok)
		assert.Equal(t, record.TriggerDatetime, rule.At)

		var stored ResumptionPayload
		require.NoError(t, json.Unmarshal(rule.Payload, &stored))
		assert.Equal(t, record.TimebombID, stored.Metadata.TimebombID)
		assert.Equal(t, "user-1", stored.Metadata.UserID)
	})

	t.Run("cancel removes the rule", func(t *testing.T) {
		bus := NewMemoryEventBus()
		scheduler := newTestScheduler(t, bus, now)

		record, err := scheduler.Schedule(ctx, now.Add(time.Hour), "FOLLOWUP", &ResumptionPayload{})
		require.NoError(t, err)
		require.NoError(t, scheduler.Cancel(ctx, record.TimebombID))

		_, ok := bus.Rule(TimebombRuleName(record.TimebombID))
		assert.False(t, ok)
	})

	t.Run("cancel of unknown rule fails", func(t *testing.T) {
		scheduler := newTestScheduler(t, NewMemoryEventBus(), now)
		err := scheduler.Cancel(ctx, "timebomb_missing")
		require.Error(t, err)
		assert.True(t, HasErrorType(err, ErrorTypeScheduling))
	})

	t.Run("schedule countdown defaults the type", func(t *testing.T) {
		bus := NewMemoryEventBus()
		scheduler := newTestScheduler(t, bus, now)

		record, err := scheduler.ScheduleCountdown(ctx, CountdownDuration{Hours: 2}, nil, "", &ResumptionPayload{})
		require.NoError(t, err)
		assert.Equal(t, "COUNTDOWN-2H-0D-0W-0M-0Y", record.Type)
		assert.Equal(t, now.Add(2*time.Hour), record.TriggerDatetime)
	})

	t.Run("clear thread timebombs", func(t *testing.T) {
		bus := NewMemoryEventBus()
		scheduler := newTestScheduler(t, bus, now)
		state := InitialState(now)

		first, err := scheduler.Schedule(ctx, now.Add(time.Hour), "FOLLOWUP", &ResumptionPayload{})
		require.NoError(t, err)
		state.SetTimebomb("thread-1", *first)

		second, err := scheduler.Schedule(ctx, now.Add(2*time.Hour), "REMINDER", &ResumptionPayload{})
		require.NoError(t, err)
		state.SetTimebomb("thread-1", *second)

		other, err := scheduler.Schedule(ctx, now.Add(time.Hour), "FOLLOWUP", &ResumptionPayload{})
		require.NoError(t, err)
		state.SetTimebomb("thread-2", *other)

		require.NoError(t, scheduler.ClearThreadTimebombs(ctx, state, "thread-1"))

		for _, record := range state.State.Metadata.Timebombs["thread-1"] {
			assert.Equal(t, TimebombCancelled, record.Status)
		}
		_, ok := bus.Rule(TimebombRuleName(first.TimebombID))
		assert.False(t, ok)
		_, ok = bus.Rule(TimebombRuleName(second.TimebombID))
		assert.False(t, ok)

		// The other thread's trigger stays armed.
		got, ok := state.Timebomb("thread-2", other.TimebombID)
		require.True(t, ok)
		assert.Equal(t, TimebombActive, got.Status)
		_, ok = bus.Rule(TimebombRuleName(other.TimebombID))
		assert.True(t, ok)
	})

	t.Run("requires bus and target", func(t *testing.T) {
		_, err := NewScheduler(SchedulerOptions{Target: "arn"})
		require.Error(t, err)
		_, err = NewScheduler(SchedulerOptions{Bus: NewMemoryEventBus()})
		require.Error(t, err)
	})
}
