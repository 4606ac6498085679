package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

// clientNamespace derives stable client ids so re-seeding does not duplicate rosters.
var clientNamespace = uuid.MustParse("6f1c2a4e-8d3b-4c57-9a0e-2b7d5f4e1c93")

type seedFile struct {
	Agencies []seedAgency `yaml:"agencies"`
	Tenants  []seedTenant `yaml:"tenants"`
	Monitor  *seedMonitor `yaml:"monitor"`
}

type seedAgency struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	RegistrySlug    string   `yaml:"registry_slug"`
	DocumentTypes   []string `yaml:"document_types"`
	NewsroomFeedURL string   `yaml:"newsroom_feed_url"`
	IsActive        *bool    `yaml:"is_active"`
}

func (a seedAgency) active() bool { return a.IsActive == nil || *a.IsActive }

type seedTenant struct {
	ID             uuid.UUID          `yaml:"id"`
	Name           string             `yaml:"name"`
	OutputType     models.OutputType  `yaml:"output_type"`
	AutoProcess    *bool              `yaml:"auto_process"`
	DescriptionDoc string             `yaml:"description_doc"`
	Branding       seedBranding       `yaml:"branding"`
	ModelConfig    seedModelConfig    `yaml:"model_config"`
	Subscriptions  []seedSubscription `yaml:"subscriptions"`
	Clients        []seedClient       `yaml:"clients"`
}

func (t seedTenant) autoProcess() bool { return t.AutoProcess == nil || *t.AutoProcess }

type seedBranding struct {
	CompanyName    string `yaml:"company_name"`
	Tagline        string `yaml:"tagline"`
	LogoPath       string `yaml:"logo_path"`
	PrimaryColor   string `yaml:"primary_color"`
	SecondaryColor string `yaml:"secondary_color"`
	AccentColor    string `yaml:"accent_color"`
}

func (b seedBranding) model() models.Branding {
	return models.Branding{
		CompanyName:    b.CompanyName,
		Tagline:        b.Tagline,
		LogoPath:       b.LogoPath,
		PrimaryColor:   b.PrimaryColor,
		SecondaryColor: b.SecondaryColor,
		AccentColor:    b.AccentColor,
	}
}

type seedModelConfig struct {
	BaseModel          string `yaml:"base_model"`
	CustomizationModel string `yaml:"customization_model"`
}

type seedSubscription struct {
	AgencyID string `yaml:"agency"`
	Registry *bool  `yaml:"registry"`
	Newsroom bool   `yaml:"newsroom"`
}

func (s seedSubscription) registryEnabled() bool { return s.Registry == nil || *s.Registry }

type seedClient struct {
	ID         uuid.UUID `yaml:"id"`
	Name       string    `yaml:"name"`
	Industry   string    `yaml:"industry"`
	Context    string    `yaml:"context"`
	FocusAreas []string  `yaml:"focus_areas"`
	IsActive   *bool     `yaml:"is_active"`
}

func (c seedClient) active() bool { return c.IsActive == nil || *c.IsActive }

type seedMonitor struct {
	AgencySlugs         []string `yaml:"agency_slugs"`
	DocumentTypes       []string `yaml:"document_types"`
	PollIntervalMinutes *int     `yaml:"poll_interval_minutes"`
	AutoProcessNew      *bool    `yaml:"auto_process_new"`
}

// parseSeed decodes a seed file, fills derived ids and validates references.
func parseSeed(raw []byte) (*seedFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var seed seedFile
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	agencies := make(map[string]bool, len(seed.Agencies))
	for _, a := range seed.Agencies {
		if a.ID == "" || a.RegistrySlug == "" {
			return nil, errors.New("agency id and registry_slug are required")
		}
		agencies[a.ID] = true
	}

	for i := range seed.Tenants {
		t := &seed.Tenants[i]
		if t.ID == uuid.Nil {
			return nil, fmt.Errorf("tenant %q: id is required", t.Name)
		}
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("tenant %s: name is required", t.ID)
		}
		if !models.IsValidOutputType(t.OutputType) {
			return nil, fmt.Errorf("tenant %s: invalid output_type %q", t.Name, t.OutputType)
		}
		for _, s := range t.Subscriptions {
			if !agencies[s.AgencyID] {
				return nil, fmt.Errorf("tenant %s: unknown agency %q", t.Name, s.AgencyID)
			}
		}
		seen := make(map[string]bool, len(t.Clients))
		for j := range t.Clients {
			c := &t.Clients[j]
			if c.Name == "" {
				return nil, fmt.Errorf("tenant %s: client name is required", t.Name)
			}
			if seen[c.Name] {
				return nil, fmt.Errorf("tenant %s: duplicate client %q", t.Name, c.Name)
			}
			seen[c.Name] = true
			if c.ID == uuid.Nil {
				c.ID = uuid.NewSHA1(clientNamespace, []byte(t.ID.String()+"/"+c.Name))
			}
		}
	}

	return &seed, nil
}
