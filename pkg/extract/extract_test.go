package extract

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-regwatch/pkg/apperrors"
)

func TestClean_RemovesRegisterHeader(t *testing.T) {
	raw := "Federal Register / Vol. 89, No. 12 / Thursday, January 18, 2024 / Rules and Regulations\nSUMMARY: This rule updates payment policies."
	got := Clean(raw)
	assert.NotContains(t, got, "Federal Register / Vol.")
	assert.Contains(t, got, "SUMMARY: This rule updates payment policies.")
}

func TestClean_RemovesPageNumbersAndControlLines(t *testing.T) {
	raw := strings.Join([]string{
		"Section one text.",
		"  4521  ",
		"VerDate Sep<11>2014 16:22 Jan 17, 2024 Jkt 262001 PO 00000 Frm 00001 Fmt 4700 Sfmt 4700",
		"E:\\FR\\FM\\18JAR1.SGM 18JAR1",
		"Section two text.",
	}, "\n")

	got := Clean(raw)
	assert.NotContains(t, got, "4521")
	assert.NotContains(t, got, "VerDate")
	assert.NotContains(t, got, "18JAR1")
	assert.Contains(t, got, "Section one text.")
	assert.Contains(t, got, "Section two text.")
}

func TestClean_KeepsBodyLinesMentioningControlTokens(t *testing.T) {
	raw := strings.Join([]string{
		"Hospitals billing modifier PO 58 times must report under DSKHospital rules.",
		"PO 00000 Frm 00003 Fmt 4701 Sfmt 4700",
		"DSK3GMQ082PROD with RULES",
		"Second line.",
	}, "\n")

	got := Clean(raw)
	assert.Contains(t, got, "Hospitals billing modifier PO 58 times must report under DSKHospital rules.")
	assert.Contains(t, got, "Second line.")
	assert.NotContains(t, got, "Frm 00003")
	assert.NotContains(t, got, "DSK3GMQ082PROD")
}

func TestClean_RejoinsHyphenatedWords(t *testing.T) {
	got := Clean("The reimburse-\n   ment schedule applies.")
	assert.Equal(t, "The reimbursement schedule applies.", got)
}

func TestClean_CollapsesBlankRuns(t *testing.T) {
	got := Clean("first\n\n\n\n\n\n\nsecond   \f third  ")
	assert.Equal(t, "first\n\n\nsecond\n third", got)
}

func TestClean_Idempotent(t *testing.T) {
	raw := "Federal Register / Vol. 89, No. 1 / Monday, January 1, 2024 / Proposed Rules\n12\nBody-\ntext\n\n\n\n\nend"
	once := Clean(raw)
	assert.Equal(t, once, Clean(once))
}

func TestTruncate(t *testing.T) {
	short := "short text"
	assert.Equal(t, short, Truncate(short, 100))

	long := strings.Repeat("a", 200)
	got := Truncate(long, 150)
	assert.True(t, strings.HasSuffix(got, TruncationMarker))
	assert.Equal(t, 150+len(TruncationMarker), len(got))

	assert.Equal(t, long, Truncate(long, 0))
}

func TestExtract_EmptyInput(t *testing.T) {
	_, err := Extract(nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsStage(err, apperrors.StageExtraction))
}

func TestExtract_NotAPDF(t *testing.T) {
	_, err := Extract([]byte("<html>not a pdf</html>"))
	require.Error(t, err)
	assert.True(t, apperrors.IsStage(err, apperrors.StageExtraction))
}

func TestExtractClean_GeneratedPDF(t *testing.T) {
	doc := fpdf.New("P", "mm", "Letter", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Cell(0, 10, "MedicareProgram")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	res, err := Extract(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1, res.PageCount)

	text, err := ExtractClean(buf.Bytes())
	require.NoError(t, err)
	assert.Contains(t, strings.Join(strings.Fields(text), ""), "MedicareProgram")
}
