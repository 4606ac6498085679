// Package extract turns PDF bytes into cleaned plain text suitable for prompting.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
)

// Result is the raw text layer of a PDF.
type Result struct {
	Text      string
	PageCount int
}

// Extract reads the text layer of a PDF.
// Any parse failure or an empty text layer is reported as an extraction error.
func Extract(data []byte) (result *Result, err error) {
	if len(data) == 0 {
		return nil, apperrors.ExtractionError("empty PDF", nil)
	}

	// The reader panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = apperrors.ExtractionError("failed to parse PDF", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.ExtractionError("failed to open PDF", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, apperrors.ExtractionError("failed to read PDF text", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return nil, apperrors.ExtractionError("failed to read PDF text", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, apperrors.ExtractionError("PDF has no extractable text", nil)
	}
	return &Result{Text: string(raw), PageCount: reader.NumPage()}, nil
}

// ExtractClean extracts and cleans the text of a PDF.
func ExtractClean(data []byte) (string, error) {
	res, err := Extract(data)
	if err != nil {
		return "", err
	}
	cleaned := Clean(res.Text)
	if cleaned == "" {
		return "", apperrors.ExtractionError("PDF has no extractable text after cleanup", nil)
	}
	return cleaned, nil
}

var (
	registerHeader = regexp.MustCompile(`(?i)Federal Register\s*/\s*Vol\.\s*\d+.*?/\s*\w+day,\s*\w+\s+\d+,\s*\d{4}\s*/\s*(?:Rules and Regulations|Proposed Rules?|Rules?|Notices?|Presidential Documents)`)
	pageNumberLine = regexp.MustCompile(`(?m)^\s*\d{1,6}\s*$`)
	controlLine    = regexp.MustCompile(`(?m)^(?:VerDate\s|Jkt\s|PO\s+\d+|Frm\s+\d+|Fmt\s+\d+|Sfmt\s+\d+|\d+\.TXT|E:\\FR\\FM\\|DSK\w+).*$`)
	hyphenBreak    = regexp.MustCompile(`(\w)-\n\s*(\w)`)
	excessNewlines = regexp.MustCompile(`\n{4,}`)
	trailingSpace  = regexp.MustCompile(`(?m)[ \t]+$`)
)

// Clean strips Federal Register page furniture from extracted text.
// Running headers, bare page numbers and typesetting control lines are
// removed, words broken across lines are rejoined and blank runs collapsed.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")
	text = registerHeader.ReplaceAllString(text, "")
	text = controlLine.ReplaceAllString(text, "")
	text = pageNumberLine.ReplaceAllString(text, "")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	text = trailingSpace.ReplaceAllString(text, "")
	text = excessNewlines.ReplaceAllString(text, "\n\n\n")
	return strings.TrimSpace(text)
}

// TruncationMarker is appended when text is cut to fit a model's input budget.
const TruncationMarker = "\n\n[Document truncated due to length]"

// Truncate cuts text to at most maxChars runes and appends TruncationMarker.
// Text within the limit is returned unchanged.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars]) + TruncationMarker
}
