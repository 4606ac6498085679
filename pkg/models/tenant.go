package models

import (
	"time"

	"github.com/google/uuid"
)

// OutputType selects which artifact a tenant receives.
type OutputType string

const (
	OutputTypeSlideDeck OutputType = "slide_deck"
	OutputTypeMemoPDF   OutputType = "memo_pdf"
)

// ValidOutputTypes contains all valid output type values.
var ValidOutputTypes = []OutputType{
	OutputTypeSlideDeck,
	OutputTypeMemoPDF,
}

// IsValidOutputType checks if the given output type is valid.
func IsValidOutputType(t OutputType) bool {
	for _, v := range ValidOutputTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Branding controls rendered artifact styling. Empty fields fall back to renderer defaults.
type Branding struct {
	CompanyName    string `json:"company_name,omitempty"`
	Tagline        string `json:"tagline,omitempty"`
	LogoPath       string `json:"logo_path,omitempty"` // blob store path
	PrimaryColor   string `json:"primary_color,omitempty"`
	SecondaryColor string `json:"secondary_color,omitempty"`
	AccentColor    string `json:"accent_color,omitempty"`
}

// ModelConfig overrides the default model identifiers for a tenant.
type ModelConfig struct {
	BaseModel          string `json:"base_model,omitempty"`
	CustomizationModel string `json:"customization_model,omitempty"`
}

// Tenant is a subscribing organization.
type Tenant struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	OutputType      OutputType  `json:"output_type"`
	HasClientRoster bool        `json:"has_client_roster"`
	AutoProcess     bool        `json:"auto_process"`
	Branding        Branding    `json:"branding"`
	ModelConfig     ModelConfig `json:"model_config"`
	// DescriptionDoc holds freeform slide-deck transformation rules.
	DescriptionDoc string    `json:"description_doc,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DisplayName returns the branded company name, falling back to the tenant name.
func (t *Tenant) DisplayName() string {
	if t.Branding.CompanyName != "" {
		return t.Branding.CompanyName
	}
	return t.Name
}

// InitialOutputStatus is the status a freshly routed base output starts in.
func (t *Tenant) InitialOutputStatus() OutputStatus {
	if t.AutoProcess {
		return OutputStatusPending
	}
	return OutputStatusAwaitingApproval
}

// Client is a named sub-entity of a tenant. Never mutated by the pipeline.
type Client struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Name       string    `json:"name"`
	Industry   string    `json:"industry,omitempty"`
	Context    string    `json:"context,omitempty"`
	FocusAreas []string  `json:"focus_areas,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}
