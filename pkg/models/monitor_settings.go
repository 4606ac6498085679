package models

import (
	"fmt"
	"time"
)

// Poll status strings recorded in MonitorSettings.LastPollStatus.
const (
	PollStatusSuccess = "success"
)

// MonitorSettings is the single-row configuration and bookkeeping for the poller.
type MonitorSettings struct {
	ID                     int        `json:"id"`
	IsEnabled              bool       `json:"is_enabled"`
	PollIntervalMinutes    int        `json:"poll_interval_minutes"`
	AgencySlugs            []string   `json:"agency_slugs"`
	DocumentTypes          []string   `json:"document_types"`
	OnlySignificant        bool       `json:"only_significant"`
	AutoProcessNew         bool       `json:"auto_process_new"`
	Initialized            bool       `json:"initialized"`
	InitialDocumentCount   int        `json:"initial_document_count"`
	PollDocumentCount      int        `json:"poll_document_count"`
	LastPollAt             *time.Time `json:"last_poll_at,omitempty"`
	LastPollStatus         *string    `json:"last_poll_status,omitempty"`
	LastPollDocumentsFound *int       `json:"last_poll_documents_found,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// PageSize returns how many candidates one poll should request:
// the backfill size before the first run, the steady-state size after.
func (s *MonitorSettings) PageSize() int {
	if !s.Initialized {
		if s.InitialDocumentCount > 0 {
			return s.InitialDocumentCount
		}
		return 5
	}
	if s.PollDocumentCount > 0 {
		return s.PollDocumentCount
	}
	return 20
}

// PollOutcome formats the status string recorded after a poll.
func PollOutcome(errorCount int) string {
	if errorCount == 0 {
		return PollStatusSuccess
	}
	return fmt.Sprintf("partial success (%d errors)", errorCount)
}

// PollFailure formats the status string recorded after a failed poll.
func PollFailure(err error) string {
	return "error: " + err.Error()
}

// MonitorSettingsUpdate is a partial update; nil fields are left unchanged.
type MonitorSettingsUpdate struct {
	IsEnabled            *bool     `json:"is_enabled,omitempty"`
	PollIntervalMinutes  *int      `json:"poll_interval_minutes,omitempty"`
	AgencySlugs          *[]string `json:"agency_slugs,omitempty"`
	DocumentTypes        *[]string `json:"document_types,omitempty"`
	OnlySignificant      *bool     `json:"only_significant,omitempty"`
	AutoProcessNew       *bool     `json:"auto_process_new,omitempty"`
	InitialDocumentCount *int      `json:"initial_document_count,omitempty"`
	PollDocumentCount    *int      `json:"poll_document_count,omitempty"`
}

// IsEmpty reports whether the update carries no fields.
func (u *MonitorSettingsUpdate) IsEmpty() bool {
	return u.IsEnabled == nil && u.PollIntervalMinutes == nil && u.AgencySlugs == nil &&
		u.DocumentTypes == nil && u.OnlySignificant == nil && u.AutoProcessNew == nil &&
		u.InitialDocumentCount == nil && u.PollDocumentCount == nil
}
