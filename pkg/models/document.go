package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Document Source
// ============================================================================

// DocumentSource identifies the feed a regulatory document was detected on.
type DocumentSource string

const (
	DocumentSourceFederalRegister DocumentSource = "federal_register"
	DocumentSourceAgencyNewsroom  DocumentSource = "agency_newsroom"
)

// ValidDocumentSources contains all valid source values.
var ValidDocumentSources = []DocumentSource{
	DocumentSourceFederalRegister,
	DocumentSourceAgencyNewsroom,
}

// IsValidDocumentSource checks if the given source is valid.
func IsValidDocumentSource(s DocumentSource) bool {
	for _, v := range ValidDocumentSources {
		if v == s {
			return true
		}
	}
	return false
}

// ============================================================================
// Regulatory Document
// ============================================================================

// RegulatoryDocument is one distinct source publication.
// (Source, ExternalID) is globally unique.
type RegulatoryDocument struct {
	ID              uuid.UUID      `json:"id"`
	Source          DocumentSource `json:"source"`
	ExternalID      string         `json:"external_id"`
	AgencyID        string         `json:"agency_id"`
	Title           string         `json:"title"`
	Abstract        string         `json:"abstract,omitempty"`
	PublicationDate *time.Time     `json:"publication_date,omitempty"`
	PDFURL          string         `json:"pdf_url,omitempty"`
	HTMLURL         string         `json:"html_url,omitempty"`
	Citation        string         `json:"citation,omitempty"`
	DocumentType    string         `json:"document_type,omitempty"`
	IsSignificant   bool           `json:"is_significant"`
	DetectedAt      time.Time      `json:"detected_at"`
	CreatedAt       time.Time      `json:"created_at"`
}

// PublicationDateString formats the publication date for display, or returns "".
func (d *RegulatoryDocument) PublicationDateString() string {
	if d.PublicationDate == nil {
		return ""
	}
	return d.PublicationDate.Format("January 2, 2006")
}

// ============================================================================
// Agency and Subscriptions
// ============================================================================

// Agency is a monitored regulator. Read-only to the pipeline.
type Agency struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	RegistrySlug    string    `json:"registry_slug"`
	DocumentTypes   []string  `json:"document_types"`
	NewsroomFeedURL string    `json:"newsroom_feed_url,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// TenantAgencySubscription joins a tenant to an agency with per-feed flags.
type TenantAgencySubscription struct {
	TenantID            uuid.UUID `json:"tenant_id"`
	AgencyID            string    `json:"agency_id"`
	RegistryFeedEnabled bool      `json:"registry_feed_enabled"`
	NewsroomFeedEnabled bool      `json:"newsroom_feed_enabled"`
}

// EnabledFor reports whether the subscription routes documents from the given source.
func (s *TenantAgencySubscription) EnabledFor(source DocumentSource) bool {
	switch source {
	case DocumentSourceFederalRegister:
		return s.RegistryFeedEnabled
	case DocumentSourceAgencyNewsroom:
		return s.NewsroomFeedEnabled
	default:
		return false
	}
}

// TenantDocument is a document from one of a tenant's subscribed agencies,
// with that tenant's base output when one has been routed.
type TenantDocument struct {
	Document *RegulatoryDocument `json:"document"`
	Output   *BaseOutput         `json:"output,omitempty"`
}
