package export

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageGeometry(t *testing.T) {
	assert.Equal(t, 82, maxCols, "Courier columns on an A4 page inside the margins")
	assert.Equal(t, 61, maxLines, "text lines per page at the fixed leading")
}

func TestRenderPDFStructure(t *testing.T) {
	data, err := RenderPDF("Dear Sir or Madam,\n\nPlease find enclosed the requested records.", nil)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-1.")))
	assert.Contains(t, string(data), "%%EOF")
	assert.Contains(t, string(data), "Dear Sir or Madam,")
	assert.Contains(t, string(data), "/Courier")

	require.NoError(t, ValidatePDF(data))
}

func TestRenderPDFHighlights(t *testing.T) {
	text := "The witness Jane Doe attended."
	data, err := RenderPDF(text, []Highlight{
		{Start: strings.Index(text, "Jane"), End: strings.Index(text, "Jane") + len("Jane Doe"), Color: [3]float64{1, 0.78, 0.78}},
	})
	require.NoError(t, err)

	// The fill rectangle must be drawn before the glyphs it sits under.
	s := string(data)
	assert.Contains(t, s, "re f")
	assert.Less(t, strings.Index(s, "re f"), strings.Index(s, "Jane"))

	require.NoError(t, ValidatePDF(data))
}

func TestRenderPDFBlockCharacters(t *testing.T) {
	data, err := RenderPDF("Payment sent to ████ today.", nil)
	require.NoError(t, err)

	// Redaction blocks must land as one WinAnsi glyph per rune, never
	// raw multi-byte UTF-8.
	s := string(data)
	assert.Contains(t, s, "Payment sent to XXXX today.")
	assert.NotContains(t, s, "█")

	require.NoError(t, ValidatePDF(data))
}

func TestRenderPDFMultiPage(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("Line of correspondence text for pagination purposes.\n")
	}

	data, err := RenderPDF(sb.String(), nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/Count 4")

	require.NoError(t, ValidatePDF(data))
}

func TestRenderPDFEscapesDelimiters(t *testing.T) {
	data, err := RenderPDF(`Amount (net) \ gross`, nil)
	require.NoError(t, err)
	assert.Contains(t, string(data), `\(net\)`)
	require.NoError(t, ValidatePDF(data))
}

func TestWriteArchiveLayout(t *testing.T) {
	entries := []Entry{
		{
			Filename:      "statement.docx",
			Original:      strings.NewReader("raw docx bytes"),
			RedactedPDF:   []byte("%PDF-1.4 redacted"),
			DisclosurePDF: []byte("%PDF-1.4 disclosure"),
		},
		{
			Filename:      "interview.docx",
			Original:      strings.NewReader("more raw bytes"),
			RedactedPDF:   []byte("%PDF-1.4 redacted 2"),
			DisclosurePDF: []byte("%PDF-1.4 disclosure 2"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, entries))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{
		"unedited/statement.docx",
		"redacted/statement.docx.pdf",
		"disclosure/statement.docx.pdf",
		"unedited/interview.docx",
		"redacted/interview.docx.pdf",
		"disclosure/interview.docx.pdf",
	}, names)
}

func TestWriteArchiveMissingOriginal(t *testing.T) {
	entries := []Entry{{
		Filename:      "lost.docx",
		RedactedPDF:   []byte("r"),
		DisclosurePDF: []byte("d"),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, entries))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "disclosure_package_SAR-2024-001.zip", ArchiveName("SAR-2024-001"))
}

func TestWrapTextOffsets(t *testing.T) {
	text := strings.Repeat("word ", 40) // wraps past one line
	lines := wrapText(text)
	require.Greater(t, len(lines), 1)
	for _, ln := range lines {
		assert.Equal(t, ln.text, strings.ReplaceAll(text[ln.start:ln.start+len(ln.text)], "\t", " "))
	}
}
