// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// JobPhase is the execution phase of a UWS (asynchronous TAP) job.
type JobPhase string

const (
	PhasePending   JobPhase = "PENDING"
	PhaseQueued    JobPhase = "QUEUED"
	PhaseExecuting JobPhase = "EXECUTING"
	PhaseCompleted JobPhase = "COMPLETED"
	PhaseError     JobPhase = "ERROR"
	PhaseAborted   JobPhase = "ABORTED"
	PhaseUnknown   JobPhase = "UNKNOWN"
	PhaseHeld      JobPhase = "HELD"
	PhaseSuspended JobPhase = "SUSPENDED"
	PhaseArchived  JobPhase = "ARCHIVED"
)

// Terminal reports whether the job will not change phase on its own.
func (p JobPhase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseError, PhaseAborted, PhaseArchived:
		return true
	}
	return false
}

// Job records an asynchronous query submitted to a TAP service.
type Job struct {
	// ID is the job identifier assigned by the service.
	ID string `json:"id" yaml:"id"`

	// Service is the local service name (e.g. "gaia").
	Service string `json:"service" yaml:"service"`

	// URL is the job resource URL ({base}/async/{id}).
	URL string `json:"url" yaml:"url"`

	// Phase is the last observed phase.
	Phase JobPhase `json:"phase" yaml:"phase"`

	// Query is the ADQL text submitted.
	Query string `json:"query" yaml:"query"`

	// RunID is the client-chosen RUNID sent with the submission.
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// Error holds the service error summary when Phase is ERROR.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
