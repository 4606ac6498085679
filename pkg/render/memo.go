package render

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/go-pdf/fpdf"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
)

// Default memo palette.
const (
	DefaultMemoPrimary   = "1A1A2E"
	DefaultMemoSecondary = "E94560"
	memoTextDark         = "333333"
	memoTextMuted        = "666666"
	memoRule             = "CCCCCC"
)

// ============================================================================
// Markdown sections
// ============================================================================

// MemoBlockType tags one block inside a memo section.
type MemoBlockType string

const (
	MemoBlockParagraph MemoBlockType = "paragraph"
	MemoBlockBullet    MemoBlockType = "bullet"
	MemoBlockStrong    MemoBlockType = "strong"
)

// MemoBlock is one paragraph, bullet, or bold line.
type MemoBlock struct {
	Type MemoBlockType
	Text string
}

// MemoSection is a "## " heading and the blocks under it.
type MemoSection struct {
	Heading string
	Content []MemoBlock
}

var (
	bulletPrefix = regexp.MustCompile(`^[-*]\s+`)
	strongLine   = regexp.MustCompile(`^\*\*(.*?)\*\*`)
	boldSpan     = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicSpan   = regexp.MustCompile(`\*(.*?)\*`)
	codeSpan     = regexp.MustCompile("`(.*?)`")
)

// ParseMemoSections splits memo markdown into "## " sections.
// Text before the first heading and blank lines are dropped.
func ParseMemoSections(markdown string) []MemoSection {
	var (
		sections []MemoSection
		current  *MemoSection
	)

	for _, raw := range strings.Split(markdown, "\n") {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, "## ") {
			if current != nil {
				sections = append(sections, *current)
			}
			current = &MemoSection{Heading: strings.TrimSpace(strings.TrimPrefix(line, "## ")), Content: []MemoBlock{}}
			continue
		}
		if current == nil || line == "" {
			continue
		}

		switch {
		case bulletPrefix.MatchString(line):
			text := bulletPrefix.ReplaceAllString(line, "")
			current.Content = append(current.Content, MemoBlock{Type: MemoBlockBullet, Text: boldSpan.ReplaceAllString(text, "$1")})
		case strongLine.MatchString(line):
			current.Content = append(current.Content, MemoBlock{Type: MemoBlockStrong, Text: strings.ReplaceAll(line, "**", "")})
		default:
			text := boldSpan.ReplaceAllString(line, "$1")
			text = italicSpan.ReplaceAllString(text, "$1")
			text = codeSpan.ReplaceAllString(text, "$1")
			current.Content = append(current.Content, MemoBlock{Type: MemoBlockParagraph, Text: text})
		}
	}

	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}

// ============================================================================
// PDF rendering
// ============================================================================

// memoFont is the TrueType font installed by SetMemoFont, if any.
var memoFont atomic.Pointer[[]byte]

// SetMemoFont installs a TrueType font used for every memo rendered afterwards.
// Without one, memos use Helvetica and runes outside cp1252 print as '.'.
// Passing nil restores Helvetica.
func SetMemoFont(ttf []byte) error {
	if ttf == nil {
		memoFont.Store(nil)
		return nil
	}
	if len(ttf) < 4 || !(bytes.Equal(ttf[:4], []byte{0, 1, 0, 0}) || bytes.Equal(ttf[:4], []byte("true"))) {
		return errors.New("memo font must be a TrueType (.ttf) file")
	}
	memoFont.Store(&ttf)
	return nil
}

// typeface selects the memo font family and the text encoding that goes with it.
type typeface struct {
	family string
	tr     func(string) string
}

func (f typeface) set(pdf *fpdf.Fpdf, style string, size float64) {
	pdf.SetFont(f.family, style, size)
}

func newTypeface(pdf *fpdf.Fpdf, ttf []byte) typeface {
	if ttf == nil {
		return typeface{family: "Helvetica", tr: pdf.UnicodeTranslatorFromDescriptor("")}
	}
	for _, style := range []string{"", "B", "I"} {
		pdf.AddUTF8FontFromBytes("memo", style, ttf)
	}
	return typeface{family: "memo", tr: func(s string) string { return s }}
}

// MemoRenderer writes briefing memos as branded A4 PDFs.
type MemoRenderer struct {
	font []byte
}

// NewMemoRenderer creates a MemoRenderer using the font set by SetMemoFont.
func NewMemoRenderer() *MemoRenderer {
	r := &MemoRenderer{}
	if f := memoFont.Load(); f != nil {
		r.font = *f
	}
	return r
}

var _ Renderer = (*MemoRenderer)(nil)

func (r *MemoRenderer) ContentType() string { return "application/pdf" }

func (r *MemoRenderer) Extension() string { return "pdf" }

// Render converts input.Markdown into a PDF.
func (r *MemoRenderer) Render(input *RenderInput) ([]byte, error) {
	if input == nil || strings.TrimSpace(input.Markdown) == "" {
		return nil, apperrors.RenderError("memo markdown is required", nil)
	}
	sections := ParseMemoSections(input.Markdown)
	if len(sections) == 0 {
		return nil, apperrors.RenderError("memo has no sections", nil)
	}

	primary := normalizeHex(input.Branding.PrimaryColor, DefaultMemoPrimary)
	secondary := normalizeHex(input.Branding.SecondaryColor, DefaultMemoSecondary)
	company := input.Branding.CompanyName
	if company == "" {
		company = "Regulatory Briefing"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	face := newTypeface(pdf, r.font)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 22)
	pdf.SetTitle(documentTitle(input), true)
	pdf.SetAuthor(company, true)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-17)
		setDraw(pdf, memoRule)
		pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
		face.set(pdf, "", 8)
		setText(pdf, memoTextMuted)
		pdf.CellFormat(90, 8, face.tr(company), "", 0, "L", false, 0, "")
		pdf.CellFormat(90, 8, fmt.Sprintf("Confidential | Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	writeHeader(pdf, face, input, primary)
	writeMetadata(pdf, face, input, primary, secondary)
	for _, section := range sections {
		writeSection(pdf, face, section, primary, secondary)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperrors.RenderError("failed to write memo PDF", err)
	}
	return buf.Bytes(), nil
}

func documentTitle(input *RenderInput) string {
	if input.Document != nil && input.Document.Title != "" {
		return input.Document.Title
	}
	return "Regulatory Briefing"
}

func writeHeader(pdf *fpdf.Fpdf, face typeface, input *RenderInput, primary string) {
	if imageType := logoType(input.Logo); imageType != "" {
		opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
		pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(input.Logo))
		if pdf.Ok() {
			pdf.ImageOptions("logo", 15, 12, 0, 12, false, opts, 0, "")
			pdf.SetY(26)
		} else {
			// An unreadable logo never blocks the memo.
			pdf.ClearError()
		}
	}

	if input.Branding.CompanyName != "" {
		face.set(pdf, "B", 14)
		setText(pdf, primary)
		pdf.CellFormat(0, 7, face.tr(input.Branding.CompanyName), "", 1, "L", false, 0, "")
	}
	if input.Branding.Tagline != "" {
		face.set(pdf, "I", 9)
		setText(pdf, memoTextMuted)
		pdf.CellFormat(0, 5, face.tr(input.Branding.Tagline), "", 1, "L", false, 0, "")
	}

	pdf.Ln(2)
	setDraw(pdf, primary)
	pdf.SetLineWidth(0.7)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.SetLineWidth(0.2)
	pdf.Ln(5)
}

func writeMetadata(pdf *fpdf.Fpdf, face typeface, input *RenderInput, primary, secondary string) {
	face.set(pdf, "B", 11)
	setText(pdf, primary)
	pdf.CellFormat(0, 6, "REGULATORY BRIEFING", "", 1, "L", false, 0, "")

	face.set(pdf, "B", 14)
	setText(pdf, "000000")
	pdf.MultiCell(0, 6.5, face.tr(documentTitle(input)), "", "L", false)
	pdf.Ln(1)

	if input.ClientName != "" {
		face.set(pdf, "B", 10)
		setText(pdf, secondary)
		pdf.CellFormat(0, 5, face.tr("Prepared for: "+input.ClientName), "", 1, "L", false, 0, "")
	}

	if line := metadataLine(input); line != "" {
		face.set(pdf, "", 9)
		setText(pdf, memoTextMuted)
		pdf.CellFormat(0, 5, face.tr(line), "", 1, "L", false, 0, "")
	}

	pdf.Ln(3)
	setDraw(pdf, memoRule)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(5)
}

// metadataLine formats "date | citation | type", skipping empty parts.
func metadataLine(input *RenderInput) string {
	if input.Document == nil {
		return ""
	}
	var parts []string
	if d := input.Document.PublicationDateString(); d != "" {
		parts = append(parts, d)
	}
	if input.Document.Citation != "" {
		parts = append(parts, input.Document.Citation)
	}
	if input.Document.DocumentType != "" {
		parts = append(parts, input.Document.DocumentType)
	}
	return strings.Join(parts, " | ")
}

func writeSection(pdf *fpdf.Fpdf, face typeface, section MemoSection, primary, secondary string) {
	pdf.Ln(2)
	face.set(pdf, "B", 12)
	setText(pdf, primary)
	pdf.MultiCell(0, 6, face.tr(section.Heading), "", "L", false)
	pdf.Ln(1)

	for _, block := range section.Content {
		switch block.Type {
		case MemoBlockBullet:
			pdf.SetX(20)
			face.set(pdf, "", 10)
			setText(pdf, secondary)
			pdf.CellFormat(5, 5.5, face.tr("•"), "", 0, "L", false, 0, "")
			setText(pdf, memoTextDark)
			pdf.MultiCell(0, 5.5, face.tr(block.Text), "", "L", false)
			pdf.Ln(0.8)
		case MemoBlockStrong:
			face.set(pdf, "B", 10)
			setText(pdf, "000000")
			pdf.MultiCell(0, 5.5, face.tr(block.Text), "", "L", false)
			pdf.Ln(0.8)
		default:
			face.set(pdf, "", 10)
			setText(pdf, memoTextDark)
			pdf.MultiCell(0, 5.5, face.tr(block.Text), "", "L", false)
			pdf.Ln(2)
		}
	}
	pdf.Ln(3)
}

func logoType(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	switch http.DetectContentType(data) {
	case "image/png":
		return "PNG"
	case "image/jpeg":
		return "JPG"
	default:
		return ""
	}
}

func setText(pdf *fpdf.Fpdf, hex string) {
	r, g, b := rgb(hex)
	pdf.SetTextColor(r, g, b)
}

func setDraw(pdf *fpdf.Fpdf, hex string) {
	r, g, b := rgb(hex)
	pdf.SetDrawColor(r, g, b)
}
