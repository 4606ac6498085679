package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-regwatch/pkg/models"
)

// Default deck palette. Branding primary/secondary colors replace navy/teal.
const (
	DefaultSlidePrimary   = "1B3A5C"
	DefaultSlideSecondary = "0D7C8C"
	slideTextDark         = "333333"
	slideTextLight        = "666666"
	slideWhite            = "FFFFFF"
	slideFont             = "Calibri"
)

// 16:9 widescreen, in EMU.
const (
	emuPerInch  = 914400
	slideWidth  = 12192000
	slideHeight = 6858000
)

func in(inches float64) int64 {
	return int64(inches * emuPerInch)
}

// SlideRenderer writes slide decks as Office Open XML presentations.
type SlideRenderer struct {
	now func() time.Time
}

// NewSlideRenderer creates a SlideRenderer.
func NewSlideRenderer() *SlideRenderer {
	return &SlideRenderer{now: time.Now}
}

var _ Renderer = (*SlideRenderer)(nil)

func (r *SlideRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
}

func (r *SlideRenderer) Extension() string { return "pptx" }

// deckStyle is the resolved palette for one deck.
type deckStyle struct {
	primary   string
	secondary string
	citation  string
}

func (s deckStyle) footer() string {
	if s.citation == "" {
		return "Source: Federal Register"
	}
	return "Source: Federal Register " + s.citation
}

// Render writes in.Deck as a .pptx package.
func (r *SlideRenderer) Render(input *RenderInput) ([]byte, error) {
	if input == nil || input.Deck == nil {
		return nil, apperrors.RenderError("slide deck is required", nil)
	}
	deck := input.Deck
	if err := deck.Validate(); err != nil {
		return nil, apperrors.RenderError("invalid slide deck", err)
	}

	style := deckStyle{
		primary:   normalizeHex(input.Branding.PrimaryColor, DefaultSlidePrimary),
		secondary: normalizeHex(input.Branding.SecondaryColor, DefaultSlideSecondary),
		citation:  deck.Metadata.Citation,
	}
	if style.citation == "" && input.Document != nil {
		style.citation = input.Document.Citation
	}

	pkg := newPackageWriter()
	n := len(deck.Slides)

	presRels := []relationship{{ID: "rId1", Type: relSlideMaster, Target: "slideMasters/slideMaster1.xml"}}
	slideRelIDs := make([]string, 0, n)
	for i, slide := range deck.Slides {
		num := i + 1
		relID := fmt.Sprintf("rId%d", num+1)
		slideRelIDs = append(slideRelIDs, relID)
		presRels = append(presRels, relationship{ID: relID, Type: relSlide, Target: fmt.Sprintf("slides/slide%d.xml", num)})

		if i == 0 && input.ClientName != "" && slide.SlideType == models.SlideTypeTitle {
			slide.Subtitle = strings.TrimSpace(slide.Subtitle + "\nPrepared for: " + input.ClientName)
		}

		part := buildSlide(slide, style)
		slideRels := []relationship{{ID: "rId1", Type: relSlideLayout, Target: "../slideLayouts/slideLayout1.xml"}}
		if notes := slide.Notes(); len(notes) > 0 {
			slideRels = append(slideRels, relationship{ID: "rId2", Type: relNotesSlide, Target: fmt.Sprintf("../notesSlides/notesSlide%d.xml", num)})
			pkg.part(fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", num), ctNotesSlide, "notes", buildNotes(notes))
			pkg.rels(fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", num), []relationship{
				{ID: "rId1", Type: relNotesMaster, Target: "../notesMasters/notesMaster1.xml"},
				{ID: "rId2", Type: relSlide, Target: fmt.Sprintf("../slides/slide%d.xml", num)},
			})
		}
		pkg.part(fmt.Sprintf("ppt/slides/slide%d.xml", num), ctSlide, "slide", part)
		pkg.rels(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", num), slideRels)
	}

	notesMasterRel := fmt.Sprintf("rId%d", n+2)
	presRels = append(presRels,
		relationship{ID: notesMasterRel, Type: relNotesMaster, Target: "notesMasters/notesMaster1.xml"},
		relationship{ID: fmt.Sprintf("rId%d", n+3), Type: relTheme, Target: "theme/theme1.xml"},
		relationship{ID: fmt.Sprintf("rId%d", n+4), Type: relPresProps, Target: "presProps.xml"},
		relationship{ID: fmt.Sprintf("rId%d", n+5), Type: relViewProps, Target: "viewProps.xml"},
		relationship{ID: fmt.Sprintf("rId%d", n+6), Type: relTableStyles, Target: "tableStyles.xml"},
	)

	theme := themePart{
		Name:      "Regulatory Briefing",
		Primary:   style.primary,
		Secondary: style.secondary,
		Dark:      slideTextDark,
		Light:     slideTextLight,
		Font:      slideFont,
	}
	creator := input.Branding.CompanyName
	if creator == "" {
		creator = "Regulatory Monitor"
	}

	pkg.rels("_rels/.rels", []relationship{
		{ID: "rId1", Type: relOfficeDoc, Target: "ppt/presentation.xml"},
		{ID: "rId2", Type: relCoreProps, Target: "docProps/core.xml"},
	})
	pkg.part("docProps/core.xml", ctCoreProps, "core", corePart{
		Title:   deck.Metadata.DocumentTitle,
		Creator: creator,
		Created: r.now().UTC().Format(time.RFC3339),
	})
	pkg.part("ppt/presentation.xml", ctPresentation, "presentation", presentationPart{
		SlideRelIDs:      slideRelIDs,
		NotesMasterRelID: notesMasterRel,
		Width:            slideWidth,
		Height:           slideHeight,
	})
	pkg.rels("ppt/_rels/presentation.xml.rels", presRels)
	pkg.part("ppt/slideMasters/slideMaster1.xml", ctSlideMaster, "master", nil)
	pkg.rels("ppt/slideMasters/_rels/slideMaster1.xml.rels", []relationship{
		{ID: "rId1", Type: relSlideLayout, Target: "../slideLayouts/slideLayout1.xml"},
		{ID: "rId2", Type: relTheme, Target: "../theme/theme1.xml"},
	})
	pkg.part("ppt/slideLayouts/slideLayout1.xml", ctSlideLayout, "layout", nil)
	pkg.rels("ppt/slideLayouts/_rels/slideLayout1.xml.rels", []relationship{
		{ID: "rId1", Type: relSlideMaster, Target: "../slideMasters/slideMaster1.xml"},
	})
	pkg.part("ppt/notesMasters/notesMaster1.xml", ctNotesMaster, "notesMaster", nil)
	pkg.rels("ppt/notesMasters/_rels/notesMaster1.xml.rels", []relationship{
		{ID: "rId1", Type: relTheme, Target: "../theme/theme2.xml"},
	})
	pkg.part("ppt/theme/theme1.xml", ctTheme, "theme", theme)
	pkg.part("ppt/theme/theme2.xml", ctTheme, "theme", theme)
	pkg.part("ppt/presProps.xml", ctPresProps, "presProps", nil)
	pkg.part("ppt/viewProps.xml", ctViewProps, "viewProps", nil)
	pkg.part("ppt/tableStyles.xml", ctTableStyles, "tableStyles", nil)

	out, err := pkg.close()
	if err != nil {
		return nil, apperrors.RenderError("failed to write presentation", err)
	}
	return out, nil
}

// ============================================================================
// Slide builders
// ============================================================================

func buildSlide(s models.Slide, style deckStyle) slidePart {
	switch s.SlideType {
	case models.SlideTypeTitle:
		return titleSlide(s, style)
	case models.SlideTypeSection:
		return sectionSlide(s, style)
	case models.SlideTypeTwoColumn:
		return twoColumnSlide(s, style)
	case models.SlideTypeSummary:
		return summarySlide(s, style)
	default:
		// content and anything the model invented
		return contentSlide(s, style)
	}
}

func titleSlide(s models.Slide, style deckStyle) slidePart {
	var lines []string
	if s.Subtitle != "" {
		lines = append(lines, strings.Split(s.Subtitle, "\n")...)
	}
	for _, item := range s.Content {
		if item.Type == models.ContentTypeParagraph {
			lines = append(lines, item.Text)
		}
	}

	shapes := []shape{
		textShape(2, "Title", 1.0, 2.0, 11.33, 1.5, "ctr",
			plain(s.Title, 3200, true, slideWhite, "ctr")),
		fillShape(3, "Accent", 5.17, 3.55, 3.0, 0.04, style.secondary),
	}
	if len(lines) > 0 {
		paras := make([]paragraph, 0, len(lines))
		for _, l := range lines {
			paras = append(paras, plain(l, 1800, false, style.secondary, "ctr"))
		}
		shapes = append(shapes, textShape(4, "Subtitle", 1.0, 3.8, 11.33, 1.4, "t", paras...))
	}
	return slidePart{Background: style.primary, Shapes: shapes}
}

func sectionSlide(s models.Slide, style deckStyle) slidePart {
	return slidePart{
		Background: style.primary,
		Shapes: []shape{
			textShape(2, "Title", 1.0, 2.5, 11.33, 1.5, "ctr",
				plain(s.Title, 2800, true, slideWhite, "ctr")),
			fillShape(3, "Accent", 5.17, 4.1, 3.0, 0.04, style.secondary),
			slideNumber(4),
		},
	}
}

func contentSlide(s models.Slide, style deckStyle) slidePart {
	shapes := headerShapes(s.Title, style)
	if items := bodyItems(s.Content); len(items) > 0 {
		shapes = append(shapes, textShape(4, "Body", 0.5, 1.3, 12.33, 5.5, "t", bulletParagraphs(items)...))
	}
	shapes = append(shapes, footer(5, style), slideNumber(6))
	return slidePart{Shapes: shapes}
}

func twoColumnSlide(s models.Slide, style deckStyle) slidePart {
	left, right := bodyItems(s.LeftColumn), bodyItems(s.RightColumn)
	if len(s.LeftColumn) == 0 && len(s.RightColumn) == 0 {
		items := bodyItems(s.Content)
		half := (len(items) + 1) / 2
		left, right = items[:half], items[half:]
	}

	shapes := headerShapes(s.Title, style)
	if len(left) > 0 {
		shapes = append(shapes, textShape(4, "Left Column", 0.5, 1.3, 5.9, 5.5, "t", bulletParagraphs(left)...))
	}
	shapes = append(shapes, fillShape(5, "Divider", 6.65, 1.5, 0.02, 4.5, slideTextLight))
	if len(right) > 0 {
		shapes = append(shapes, textShape(6, "Right Column", 6.93, 1.3, 5.9, 5.5, "t", bulletParagraphs(right)...))
	}
	shapes = append(shapes, footer(7, style), slideNumber(8))
	return slidePart{Shapes: shapes}
}

func summarySlide(s models.Slide, style deckStyle) slidePart {
	shapes := []shape{
		fillShape(2, "Banner", 0, 0, 13.33, 1.3, style.primary),
		textShape(3, "Title", 0.5, 0.25, 12.33, 0.8, "ctr", plain(s.Title, 2400, true, slideWhite, "l")),
	}
	if items := bodyItems(s.Content); len(items) > 0 {
		shapes = append(shapes, textShape(4, "Body", 0.5, 1.6, 12.33, 5.0, "t", bulletParagraphs(items)...))
	}
	shapes = append(shapes, footer(5, style), slideNumber(6))
	return slidePart{Shapes: shapes}
}

func buildNotes(notes []string) slidePart {
	paras := make([]paragraph, 0, len(notes))
	for _, n := range notes {
		paras = append(paras, plain(n, 1200, false, slideTextDark, "l"))
	}
	body := textShape(2, "Notes Placeholder", 0.75, 4.6, 6.0, 4.1, "t", paras...)
	body.Placeholder = true
	return slidePart{Shapes: []shape{body}}
}

// ============================================================================
// Shape helpers
// ============================================================================

func headerShapes(title string, style deckStyle) []shape {
	return []shape{
		textShape(2, "Title", 0.5, 0.3, 12.33, 0.8, "b", plain(title, 2400, true, style.primary, "l")),
		fillShape(3, "Accent", 0.5, 1.05, 12.33, 0.03, style.secondary),
	}
}

func footer(id int, style deckStyle) shape {
	return textShape(id, "Footer", 0.5, 7.0, 10.0, 0.3, "ctr", plain(style.footer(), 800, false, slideTextLight, "l"))
}

func slideNumber(id int) shape {
	return textShape(id, "Slide Number", 12.0, 7.0, 0.83, 0.3, "ctr", paragraph{
		Align: "r",
		Runs:  []run{{SlideNum: true, Size: 800, Color: slideTextLight, Font: slideFont}},
	})
}

func textShape(id int, name string, x, y, w, h float64, anchor string, paras ...paragraph) shape {
	return shape{ID: id, Name: name, X: in(x), Y: in(y), W: in(w), H: in(h), Anchor: anchor, Paragraphs: paras}
}

func fillShape(id int, name string, x, y, w, h float64, color string) shape {
	return shape{ID: id, Name: name, X: in(x), Y: in(y), W: in(w), H: in(h), Fill: color}
}

func plain(text string, size int, bold bool, color, align string) paragraph {
	return paragraph{
		Align: align,
		Runs:  []run{{Text: text, Size: size, Bold: bold, Color: color, Font: slideFont}},
	}
}

// bodyItems drops notes; they go to the notes slide.
func bodyItems(items []models.ContentItem) []models.ContentItem {
	out := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if item.Type != models.ContentTypeNote {
			out = append(out, item)
		}
	}
	return out
}

func bulletParagraphs(items []models.ContentItem) []paragraph {
	paras := make([]paragraph, 0, len(items))
	for _, item := range items {
		size := 1600
		if item.Level > 0 {
			size = 1400
		}
		paras = append(paras, paragraph{
			Level:  item.Level,
			Bullet: item.Type != models.ContentTypeParagraph,
			Align:  "l",
			Runs:   []run{{Text: item.Text, Size: size, Color: slideTextDark, Font: slideFont}},
		})
	}
	return paras
}

// ============================================================================
// Package writer
// ============================================================================

// packageWriter accumulates OPC parts and their content type overrides.
type packageWriter struct {
	buf       bytes.Buffer
	zw        *zip.Writer
	overrides []override
	err       error
}

func newPackageWriter() *packageWriter {
	p := &packageWriter{}
	p.zw = zip.NewWriter(&p.buf)
	return p
}

func (p *packageWriter) write(name, tmpl string, data any) {
	if p.err != nil {
		return
	}
	w, err := p.zw.Create(name)
	if err != nil {
		p.err = fmt.Errorf("create %s: %w", name, err)
		return
	}
	if err := partTemplates.ExecuteTemplate(w, tmpl, data); err != nil {
		p.err = fmt.Errorf("render %s: %w", name, err)
	}
}

func (p *packageWriter) part(name, contentType, tmpl string, data any) {
	p.overrides = append(p.overrides, override{PartName: "/" + name, ContentType: contentType})
	p.write(name, tmpl, data)
}

func (p *packageWriter) rels(name string, rels []relationship) {
	p.write(name, "rels", rels)
}

// close writes [Content_Types].xml and finishes the archive.
func (p *packageWriter) close() ([]byte, error) {
	p.write("[Content_Types].xml", "contentTypes", p.overrides)
	if p.err != nil {
		return nil, p.err
	}
	if err := p.zw.Close(); err != nil {
		return nil, err
	}
	return p.buf.Bytes(), nil
}
