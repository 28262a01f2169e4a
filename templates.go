package luzidos

import (
	"context"
)

// Follow-up timebomb type names recorded in workflow state.
const (
	TimebombTypeOneDayFollowUp  = "ONE_DAY_FOLLOWUP"
	TimebombTypeNextDayFollowUp = "NEXT_DAY_FOLLOWUP"
)

// followUpPayload builds the resumption payload for a follow-up email on the
// given thread: when the trigger fires, the workflow wakes up in SEND_EMAIL
// with the thread focused and the response type set.
func followUpPayload(id WorkflowID, threadID, responseType string) *ResumptionPayload {
	return &ResumptionPayload{
		Metadata: PayloadMetadata{
			UserID:    id.UserID,
			InvoiceID: id.InvoiceID,
			ThreadID:  threadID,
		},
		StateUpdate: map[string]any{
			"state": map[string]any{
				"metadata": map[string]any{
					"current_state": StateSendEmail,
				},
				"state_data": map[string]any{
					"focused_email_thread_id": threadID,
					"email_response_type":     responseType,
				},
			},
		},
	}
}

// SetOneDayFollowUp arms a follow-up roughly one day out, landing on the
// scheduler's aligned wall-clock time (8:00 America/Bogota by default). Any
// ACTIVE follow-up of the same type on the thread is cancelled and replaced.
// The record is written into state; the caller persists it.
func (s *Scheduler) SetOneDayFollowUp(ctx context.Context, state *WorkflowState, id WorkflowID, threadID, responseType string) (*TimebombRecord, error) {
	return s.setFollowUp(ctx, state, id, threadID, responseType,
		TimebombTypeOneDayFollowUp, CountdownDuration{Hours: 24})
}

// SetNextDayFollowUp arms a follow-up at the next occurrence of the aligned
// wall-clock time at least eight hours out, under the same cancel-and-replace
// rule as SetOneDayFollowUp.
func (s *Scheduler) SetNextDayFollowUp(ctx context.Context, state *WorkflowState, id WorkflowID, threadID, responseType string) (*TimebombRecord, error) {
	return s.setFollowUp(ctx, state, id, threadID, responseType,
		TimebombTypeNextDayFollowUp, CountdownDuration{Hours: 8})
}

func (s *Scheduler) setFollowUp(ctx context.Context, state *WorkflowState, id WorkflowID, threadID, responseType, timebombType string, d CountdownDuration) (*TimebombRecord, error) {
	for timebombID, record := range state.State.Metadata.Timebombs[threadID] {
		if record.Status != TimebombActive || record.Type != timebombType {
			continue
		}
		if err := s.Cancel(ctx, timebombID); err != nil {
			s.logger.Warn("stale follow-up cancellation failed",
				"timebomb_id", timebombID, "error", err)
		}
		record.Status = TimebombCancelled
		state.State.Metadata.Timebombs[threadID][timebombID] = record
	}

	align := s.alignment
	record, err := s.ScheduleCountdown(ctx, d, &align, timebombType,
		followUpPayload(id, threadID, responseType))
	if err != nil {
		return nil, err
	}
	state.SetTimebomb(threadID, *record)
	return record, nil
}
