package luzidos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowState(t *testing.T) {
	t.Run("initial state", func(t *testing.T) {
		state := InitialState(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
		assert.Equal(t, StateInitAgent, state.State.Metadata.CurrentState)
		assert.Equal(t, "2024-01-01T12:00:00Z", state.State.Metadata.BirthDatetime)
		assert.NotNil(t, state.State.Metadata.Timebombs)
		assert.NotNil(t, state.State.StateData)
	})

	t.Run("set and get timebomb", func(t *testing.T) {
		state := &WorkflowState{}
		record := TimebombRecord{TimebombID: "timebomb_1", Status: TimebombActive}
		state.SetTimebomb("thread-1", record)

		got, ok := state.Timebomb("thread-1", "timebomb_1")
		require.True(t, ok)
		assert.Equal(t, record, got)

		_, ok = state.Timebomb("thread-1", "timebomb_2")
		assert.False(t, ok)
		_, ok = state.Timebomb("thread-2", "timebomb_1")
		assert.False(t, ok)
	})

	t.Run("document round trip", func(t *testing.T) {
		state := InitialState(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
		state.State.StateData["focused_email_thread_id"] = "thread-1"

		doc, err := state.Document()
		require.NoError(t, err)

		var restored WorkflowState
		require.NoError(t, roundtripJSON(doc, &restored))
		assert.Equal(t, "thread-1", restored.FocusedThreadID())
		assert.Equal(t, state.State.Metadata.BirthDatetime, restored.State.Metadata.BirthDatetime)
	})
}

func TestEmailThread(t *testing.T) {
	t.Run("message order preserved", func(t *testing.T) {
		thread := NewEmailThread("thread-1")
		assert.True(t, thread.AddMessage(&Message{MessageID: "m1"}))
		assert.True(t, thread.AddMessage(&Message{MessageID: "m2"}))
		assert.True(t, thread.AddMessage(&Message{MessageID: "m3"}))
		assert.Equal(t, []string{"m1", "m2", "m3"}, thread.MessageOrder)
		assert.Equal(t, "m3", thread.LatestMessage().MessageID)
	})

	t.Run("re-adding updates without duplicating", func(t *testing.T) {
		thread := NewEmailThread("thread-1")
		thread.AddMessage(&Message{MessageID: "m1", Subject: "old"})
		assert.False(t, thread.AddMessage(&Message{MessageID: "m1", Subject: "new"}))
		assert.Equal(t, []string{"m1"}, thread.MessageOrder)
		assert.Equal(t, "new", thread.Messages["m1"].Subject)
	})

	t.Run("latest of empty thread is nil", func(t *testing.T) {
		assert.Nil(t, NewEmailThread("thread-1").LatestMessage())
	})

	t.Run("participants deduplicated in first-seen order", func(t *testing.T) {
		thread := NewEmailThread("thread-1")
		thread.AddMessage(&Message{
			MessageID: "m1",
			From:      "a@example.com",
			To:        "b@example.com, c@example.com",
		})
		thread.AddMessage(&Message{
			MessageID: "m2",
			From:      "b@example.com",
			To:        "a@example.com",
			Cc:        "d@example.com",
		})
		assert.Equal(t, []string{
			"a@example.com", "b@example.com", "c@example.com", "d@example.com",
		}, thread.Participants())
	})
}
