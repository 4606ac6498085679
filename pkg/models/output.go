package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Output Status
// ============================================================================

// OutputStatus is the lifecycle state shared by base outputs, client outputs
// and conversion jobs.
// State machine:
//
//	pending ──────────┐
//	                  ├─→ processing ─→ complete
//	awaiting_approval ┘        └──────→ failed ─(reset)─→ pending
//
//	pending | awaiting_approval ─→ skipped (terminal)
type OutputStatus string

const (
	OutputStatusPending          OutputStatus = "pending"
	OutputStatusAwaitingApproval OutputStatus = "awaiting_approval"
	OutputStatusProcessing       OutputStatus = "processing"
	OutputStatusComplete         OutputStatus = "complete"
	OutputStatusFailed           OutputStatus = "failed"
	OutputStatusSkipped          OutputStatus = "skipped"
)

// ValidOutputStatuses contains all valid status values.
var ValidOutputStatuses = []OutputStatus{
	OutputStatusPending,
	OutputStatusAwaitingApproval,
	OutputStatusProcessing,
	OutputStatusComplete,
	OutputStatusFailed,
	OutputStatusSkipped,
}

// IsValidOutputStatus checks if the given status is valid.
func IsValidOutputStatus(s OutputStatus) bool {
	for _, v := range ValidOutputStatuses {
		if v == s {
			return true
		}
	}
	return false
}

var outputTransitions = map[OutputStatus][]OutputStatus{
	OutputStatusPending:          {OutputStatusProcessing, OutputStatusSkipped},
	OutputStatusAwaitingApproval: {OutputStatusProcessing, OutputStatusSkipped},
	OutputStatusProcessing:       {OutputStatusComplete, OutputStatusFailed},
	OutputStatusFailed:           {OutputStatusPending},
	// complete -> pending only happens when the stored file has gone missing.
	OutputStatusComplete: {OutputStatusPending},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s OutputStatus) CanTransitionTo(next OutputStatus) bool {
	for _, allowed := range outputTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanBeginProcessing reports whether generation may start from s.
func (s OutputStatus) CanBeginProcessing() bool {
	return s.CanTransitionTo(OutputStatusProcessing)
}

// IsTerminal returns true for states that need an explicit action to leave.
func (s OutputStatus) IsTerminal() bool {
	return s == OutputStatusComplete || s == OutputStatusFailed || s == OutputStatusSkipped
}

// ============================================================================
// Base Output
// ============================================================================

// BaseOutput is one tenant's derived artifact for one document.
// Exactly one row exists per (RegulatoryDocumentID, TenantID).
type BaseOutput struct {
	ID                    uuid.UUID    `json:"id"`
	RegulatoryDocumentID  uuid.UUID    `json:"regulatory_document_id"`
	TenantID              uuid.UUID    `json:"tenant_id"`
	OutputType            OutputType   `json:"output_type"`
	Status                OutputStatus `json:"status"`
	OutputPath            *string      `json:"output_path,omitempty"`
	SourceText            *string      `json:"-"`
	ModelUsed             *string      `json:"model_used,omitempty"`
	TokensInput           int          `json:"tokens_input"`
	TokensOutput          int          `json:"tokens_output"`
	ProcessingStartedAt   *time.Time   `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time   `json:"processing_completed_at,omitempty"`
	ErrorMessage          *string      `json:"error_message,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// ============================================================================
// Client Output
// ============================================================================

// ClientOutput is a client-specific customization of a base output.
// Exactly one row exists per (BaseOutputID, ClientID).
type ClientOutput struct {
	ID                    uuid.UUID    `json:"id"`
	BaseOutputID          uuid.UUID    `json:"base_output_id"`
	ClientID              uuid.UUID    `json:"client_id"`
	Status                OutputStatus `json:"status"`
	SelectedForGeneration bool         `json:"selected_for_generation"`
	SelectedBy            *string      `json:"selected_by,omitempty"`
	SelectedAt            *time.Time   `json:"selected_at,omitempty"`
	OutputPath            *string      `json:"output_path,omitempty"`
	SourceText            *string      `json:"-"`
	ModelUsed             *string      `json:"model_used,omitempty"`
	TokensInput           int          `json:"tokens_input"`
	TokensOutput          int          `json:"tokens_output"`
	ProcessingStartedAt   *time.Time   `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time   `json:"processing_completed_at,omitempty"`
	ErrorMessage          *string      `json:"error_message,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// OutputCompletion carries the fields recorded when an artifact reaches complete.
type OutputCompletion struct {
	OutputPath   string
	SourceText   string
	ModelUsed    string
	TokensInput  int
	TokensOutput int
}
