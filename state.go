package luzidos

import (
	"encoding/json"
	"time"
)

// Workflow state names. The misspelling in the terminal state is part of the
// wire format shared with existing documents and must not be corrected here.
const (
	StateInitAgent              = "INIT_AGENT"
	StateSendEmail              = "SEND_EMAIL"
	StateAwaitingResponse       = "AWAITING_RESPONSE"
	StateIncorrectContact       = "INCORRECT_CONTACT"
	StateProcessEInvoice        = "PROCESS_EINVOICE"
	StateExtractEmailAction     = "EXTRACT_EMAIL_ACTION"
	StateSuccessfullyTerminated = "SUCCESFULLY_TERMINATED"
)

// Email response type tags carried by follow-up payloads.
const (
	ResponseGenericFollowUp = "GENERIC_FOLLOWUP"
	ResponseThankYou        = "THANK_YOU_EMAIL"
	ResponseRequestInvoice  = "REQUEST_INVOICE"
	ResponseUseLLM          = "USE_LLM"
	ResponseEmailUser       = "EMAIL_USER"
	ResponseMatchEmail      = "MATCH_EMAIL"
)

// TimebombStatus is the lifecycle state of a deferred trigger record.
// ACTIVE may transition to CANCELLED or TRIGGERED; both are terminal.
type TimebombStatus string

const (
	TimebombActive    TimebombStatus = "ACTIVE"
	TimebombCancelled TimebombStatus = "CANCELLED"
	TimebombTriggered TimebombStatus = "TRIGGERED"
)

// TimebombRecord is the stored metadata of one deferred trigger, keyed under
// its thread id inside the workflow state.
type TimebombRecord struct {
	TimebombID      string         `json:"timebomb_id"`
	Status          TimebombStatus `json:"status"`
	SetDatetime     time.Time      `json:"set_datetime"`
	TriggerDatetime time.Time      `json:"trigger_datetime"`
	Type            string         `json:"type"`
}

// StateMetadata is the engine-owned portion of the workflow state document.
type StateMetadata struct {
	CurrentState               string                               `json:"current_state"`
	StateUpdateQueue           []map[string]any                     `json:"state_update_queue"`
	UnreadEmailThreads         []string                             `json:"unread_email_threads"`
	UnreadRelevantEmailThreads []string                             `json:"unread_relevant_email_threads"`
	RelevantEmailThreads       []string                             `json:"relevant_email_threads"`
	Timebombs                  map[string]map[string]TimebombRecord `json:"timebombs"`
	BirthDatetime              string                               `json:"birth_datetime"`
}

// StateBody pairs the metadata with the opaque business-logic state.
type StateBody struct {
	Metadata  StateMetadata  `json:"metadata"`
	StateData map[string]any `json:"state_data"`
}

// WorkflowState is the full state document of one workflow instance. It is
// owned exclusively by the workflow and mutated only while the execution lock
// for its (user, invoice) pair is held.
type WorkflowState struct {
	State StateBody `json:"state"`
}

// InitialState returns the state document written at workflow initiation.
func InitialState(birth time.Time) *WorkflowState {
	return &WorkflowState{
		State: StateBody{
			Metadata: StateMetadata{
				CurrentState:               StateInitAgent,
				StateUpdateQueue:           []map[string]any{},
				UnreadEmailThreads:         []string{},
				UnreadRelevantEmailThreads: []string{},
				RelevantEmailThreads:       []string{},
				Timebombs:                  map[string]map[string]TimebombRecord{},
				BirthDatetime:              birth.UTC().Format(time.RFC3339),
			},
			StateData: map[string]any{},
		},
	}
}

// FocusedThreadID returns the thread the agent is currently conversing on.
func (s *WorkflowState) FocusedThreadID() string {
	v, _ := s.State.StateData["focused_email_thread_id"].(string)
	return v
}

// Timebomb looks up a record by thread and timebomb id.
func (s *WorkflowState) Timebomb(threadID, timebombID string) (TimebombRecord, bool) {
	records, ok := s.State.Metadata.Timebombs[threadID]
	if !ok {
		return TimebombRecord{}, false
	}
	record, ok := records[timebombID]
	return record, ok
}

// SetTimebomb records timebomb metadata under the given thread.
func (s *WorkflowState) SetTimebomb(threadID string, record TimebombRecord) {
	if s.State.Metadata.Timebombs == nil {
		s.State.Metadata.Timebombs = map[string]map[string]TimebombRecord{}
	}
	if s.State.Metadata.Timebombs[threadID] == nil {
		s.State.Metadata.Timebombs[threadID] = map[string]TimebombRecord{}
	}
	s.State.Metadata.Timebombs[threadID][record.TimebombID] = record
}

// Document returns the state as a generic document suitable for deep merging.
func (s *WorkflowState) Document() (map[string]any, error) {
	var doc map[string]any
	if err := roundtripJSON(s, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// roundtripJSON converts between typed documents and their generic map form.
func roundtripJSON(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
