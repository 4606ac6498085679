// Package render turns generated content into downloadable artifacts:
// PPTX slide decks and branded PDF briefing memos.
package render

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

// RenderInput is everything a renderer needs for one artifact.
// Slide renderers read Deck; memo renderers read Markdown.
type RenderInput struct {
	Deck     *models.SlideDeck
	Markdown string

	Document *models.RegulatoryDocument
	Branding models.Branding
	// Logo holds PNG or JPEG bytes loaded from Branding.LogoPath, if any.
	Logo []byte
	// ClientName is set when rendering a client customization.
	ClientName string
}

// Renderer produces artifact bytes. Implementations are pure.
type Renderer interface {
	Render(in *RenderInput) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForOutputType returns the renderer for a tenant output type.
func ForOutputType(t models.OutputType) (Renderer, error) {
	switch t {
	case models.OutputTypeSlideDeck:
		return NewSlideRenderer(), nil
	case models.OutputTypeMemoPDF:
		return NewMemoRenderer(), nil
	default:
		return nil, fmt.Errorf("unsupported output type %q", t)
	}
}

// normalizeHex returns an uppercase RRGGBB color, or fallback when c is not one.
func normalizeHex(c, fallback string) string {
	c = strings.TrimPrefix(strings.TrimSpace(c), "#")
	if len(c) != 6 {
		return fallback
	}
	for _, r := range c {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return fallback
		}
	}
	return strings.ToUpper(c)
}

// rgb splits an RRGGBB color into components.
func rgb(hex string) (int, int, int) {
	var r, g, b int
	_, _ = fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	return r, g, b
}
