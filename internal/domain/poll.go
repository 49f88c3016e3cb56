// Package domain contains the records linkup keeps about its polling.
package domain

import "time"

// PollState stores the bookkeeping of a poll loop.
type PollState struct {
	ID          string
	LastRun     time.Time
	LastSuccess time.Time
	PatientID   string
	ErrorCount  int
	LastError   string
	LastStage   string
}

// NewPollState creates a new poll state.
func NewPollState(id string) *PollState {
	return &PollState{
		ID: id,
	}
}

// RecordSuccess records a tick that produced a reading.
func (s *PollState) RecordSuccess(at time.Time, patientID string) {
	s.LastRun = at
	s.LastSuccess = at
	s.PatientID = patientID
	s.ErrorCount = 0
	s.LastError = ""
	s.LastStage = ""
}

// RecordError records a failed tick. ErrorCount counts consecutive failures.
func (s *PollState) RecordError(at time.Time, stage, errMsg string) {
	s.LastRun = at
	s.ErrorCount++
	s.LastError = errMsg
	s.LastStage = stage
}

// Healthy reports whether the last tick succeeded.
func (s *PollState) Healthy() bool {
	return s.ErrorCount == 0 && !s.LastSuccess.IsZero()
}
